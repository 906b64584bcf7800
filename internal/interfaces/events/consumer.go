// Package events consume movimientos de inventario publicados en Kafka y los aplica vía Gateway.
//
// Los mensajes se reparten por SKU entre un número fijo de workers: los de una misma SKU se
// procesan en orden y SKUs distintas avanzan en paralelo. El offset de una partición solo se
// confirma cuando todos los mensajes anteriores de esa partición ya fueron procesados, así que
// un reinicio reentrega como mucho lo pendiente (idempotente por reference_id).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

const (
	laneBuffer    = 64
	commitTimeout = 5 * time.Second
	fetchBackoff  = time.Second
)

// MessageReader subconjunto de *kafka.Reader usado por el consumidor.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageWriter subconjunto de *kafka.Writer usado para la cola de mensajes muertos.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MovementRecorder aplica un movimiento (implementado por *ledger.Gateway).
type MovementRecorder interface {
	Record(ctx context.Context, cmd ledger.Command) (*ledger.Outcome, error)
}

// MovementEvent payload JSON de un mensaje del tópico de movimientos.
type MovementEvent struct {
	EventID       string          `json:"event_id"`
	OperationType string          `json:"operation_type"`
	SKU           string          `json:"sku"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReferenceID   string          `json:"reference_id"`
	PerformedBy   string          `json:"performed_by"`
	Details       map[string]any  `json:"details,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Config parámetros del consumidor.
type Config struct {
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Consumer lee el tópico de movimientos y aplica cada evento a través del Gateway.
type Consumer struct {
	reader   MessageReader
	dlq      MessageWriter
	recorder MovementRecorder
	cfg      Config
	log      zerolog.Logger
}

// NewConsumer construye el consumidor. dlq puede ser nil: los rechazos solo se registran en el log.
func NewConsumer(reader MessageReader, dlq MessageWriter, recorder MovementRecorder, cfg Config, log zerolog.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Consumer{
		reader:   reader,
		dlq:      dlq,
		recorder: recorder,
		cfg:      cfg,
		log:      log.With().Str("component", "kafka_consumer").Logger(),
	}
}

// NewReader crea el *kafka.Reader del grupo de consumo. Los commits son explícitos.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// NewDLQWriter crea el writer de la cola de mensajes muertos, particionado por key (SKU).
func NewDLQWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Run consume hasta que ctx se cancela. Al salir espera a los workers y confirma lo procesado.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Int("workers", c.cfg.Workers).Msg("iniciando consumidor de movimientos")

	tracker := newOffsetTracker()
	lanes := make([]chan kafka.Message, c.cfg.Workers)
	processed := make(chan kafka.Message, c.cfg.Workers*laneBuffer)

	var workers sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, laneBuffer)
		workers.Add(1)
		go func(in <-chan kafka.Message) {
			defer workers.Done()
			for msg := range in {
				if c.handle(ctx, msg) {
					processed <- msg
				}
			}
		}(lanes[i])
	}

	committed := make(chan struct{})
	go func() {
		defer close(committed)
		c.commitLoop(tracker, processed)
	}()

	err := c.fetchLoop(ctx, tracker, lanes)
	for _, lane := range lanes {
		close(lane)
	}
	workers.Wait()
	close(processed)
	<-committed

	c.log.Info().Msg("consumidor de movimientos detenido")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Consumer) fetchLoop(ctx context.Context, tracker *offsetTracker, lanes []chan kafka.Message) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Msg("no se pudo leer mensaje de kafka")
			if err := sleep(ctx, fetchBackoff); err != nil {
				return err
			}
			continue
		}
		tracker.track(msg)
		select {
		case lanes[shard(msg, len(lanes))] <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// commitLoop confirma, por partición, el último offset contiguo ya procesado.
func (c *Consumer) commitLoop(tracker *offsetTracker, processed <-chan kafka.Message) {
	for msg := range processed {
		ready, ok := tracker.complete(msg)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		if err := c.reader.CommitMessages(ctx, ready); err != nil {
			c.log.Error().Err(err).
				Str("topic", ready.Topic).
				Int("partition", ready.Partition).
				Int64("offset", ready.Offset).
				Msg("no se pudo confirmar offset")
		}
		cancel()
	}
}

// handle procesa un mensaje. Devuelve false si el contexto se canceló antes de terminarlo:
// ese offset no se confirma y el mensaje se reentrega.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	if ctx.Err() != nil {
		return false
	}
	cmd, err := decode(msg.Value)
	if err != nil {
		c.deadLetter(msg, err)
		return true
	}
	for attempt := 1; ; attempt++ {
		out, err := c.recorder.Record(ctx, cmd)
		switch {
		case err == nil:
			c.log.Debug().
				Str("sku", cmd.SKU).
				Str("operation", string(cmd.OperationType)).
				Str("reference_id", cmd.ReferenceID).
				Bool("duplicate", out.Duplicate).
				Int64("offset", msg.Offset).
				Msg("evento aplicado")
			return true
		case ctx.Err() != nil:
			return false
		case domain.IsRejected(err):
			c.deadLetter(msg, err)
			return true
		case attempt >= c.cfg.MaxAttempts:
			c.log.Error().Err(err).Str("sku", cmd.SKU).Int("attempts", attempt).Msg("reintentos agotados para evento")
			c.deadLetter(msg, err)
			return true
		}
		c.log.Warn().Err(err).Str("sku", cmd.SKU).Int("attempt", attempt).Msg("error transitorio, reintentando evento")
		if sleep(ctx, c.cfg.RetryBackoff*time.Duration(attempt)) != nil {
			return false
		}
	}
}

func decode(value []byte) (ledger.Command, error) {
	var ev MovementEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return ledger.Command{}, &domain.ValidationError{Field: "payload", Reason: "JSON inválido"}
	}
	op, ok := entity.ParseOperationType(ev.OperationType)
	if !ok {
		return ledger.Command{}, &domain.ValidationError{Field: "operation_type", Reason: "no soportado"}
	}
	return ledger.Command{
		OperationType: op,
		SKU:           ev.SKU,
		Quantity:      ev.Quantity,
		ReferenceID:   ev.ReferenceID,
		PerformedBy:   ev.PerformedBy,
		Details:       ev.Details,
	}, nil
}

// deadLetter publica el mensaje original en la DLQ con el motivo en los headers.
func (c *Consumer) deadLetter(msg kafka.Message, cause error) {
	c.log.Warn().Err(cause).
		Str("key", string(msg.Key)).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("evento rechazado")
	if c.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "x-error", Value: []byte(cause.Error())},
			{Key: "x-source-topic", Value: []byte(msg.Topic)},
			{Key: "x-source-partition", Value: []byte(strconv.Itoa(msg.Partition))},
			{Key: "x-source-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		},
	})
	if err != nil {
		c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("no se pudo publicar en la DLQ")
	}
}

// shard elige el worker por SKU. La key del mensaje es la SKU; sin key se usa la partición.
func shard(msg kafka.Message, n int) int {
	if len(msg.Key) == 0 {
		return msg.Partition % n
	}
	h := fnv.New32a()
	_, _ = h.Write(msg.Key)
	return int(h.Sum32() % uint32(n))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
