// Package redis implementa sobre Redis el lease que coordina la conciliación programada
// entre varias instancias del servicio.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "inventory-ledger:lock:"

// releaseScript borra la clave solo si sigue siendo del mismo dueño. Un lease vencido y tomado
// por otra instancia no se libera desde la anterior.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Config conexión a Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient abre el cliente y verifica la conexión.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RunLock lease exclusivo con vencimiento. ttl debe cubrir la duración máxima de una corrida.
type RunLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

// NewRunLock construye el lease para name. ttl <= 0 usa una hora.
func NewRunLock(client *goredis.Client, name string, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunLock{client: client, key: keyPrefix + name, ttl: ttl}
}

// TryLock toma el lease si está libre. acquired es false si otra instancia lo tiene;
// unlock solo es distinto de nil cuando acquired es true.
func (l *RunLock) TryLock(ctx context.Context) (unlock func(), acquired bool, err error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis tomar lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// el ctx de la corrida puede estar vencido al liberar.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{l.key}, token).Err()
	}, true, nil
}
