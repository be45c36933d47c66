package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/order"
)

var ErrClosed = errors.New("realtime feed closed")

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Publisher receives the decoded changes.
type Publisher interface {
	Publish(ch order.Change)
}

// DecodeChange parses a NOTIFY payload of the orders trigger.
func DecodeChange(payload string) (order.Change, error) {
	var ch order.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return order.Change{}, errors.Wrap(err, "decoding order change")
	}
	if ch.OrderID == "" {
		return order.Change{}, errors.New("order change without order_id")
	}
	return ch, nil
}

// Listen relays the Postgres notifications of channel to pub until ctx is done.
// The connection is re-established by pq after failures; changes sent meanwhile are lost.
func Listen(ctx context.Context, dsn, channel string, pub Publisher, logger core.Logger) error {
	listener := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error(fmt.Sprintf("realtime.Listen(%s): %v", channel, err), err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(channel); err != nil {
		return errors.Wrapf(err, "listening on %s", channel)
	}
	logger.Info(fmt.Sprintf("realtime.Listen: listening on %s", channel))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-listener.Notify:
			if !ok {
				return ErrClosed
			}
			if n == nil {
				// reconnected
				logger.Warn(fmt.Sprintf("realtime.Listen(%s): connection re-established", channel))
				continue
			}
			ch, err := DecodeChange(n.Extra)
			if err != nil {
				logger.Error(fmt.Sprintf("realtime.Listen(%s): %v", channel, err), err)
				continue
			}
			pub.Publish(ch)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					logger.Warn(fmt.Sprintf("realtime.Listen(%s): ping: %v", channel, err), err)
				}
			}()
		}
	}
}
