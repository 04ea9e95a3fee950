package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/checkout"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/metrics"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingInterval = 45 * time.Second
	liveBuffer       = 8
)

// LiveMessage is one frame pushed to a live listener.
type LiveMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type pixWatcher interface {
	Watch(ctx context.Context, identityID string, onChange func(checkout.PixStatus))
}

// Origins are enforced by the CORS layer; websocket upgrades carry the bearer
// token in the query string instead of cookies.
var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// watchFunc blocks, calling send for every update, until ctx is done.
type watchFunc func(ctx context.Context, who identity.Identity, send func(event string, data any)) error

// LiveCart streams the caller's cart.
func LiveCart(svc cart.Service, m *metrics.StorefrontMetrics, logg *logger.Logger) http.HandlerFunc {
	return serveLive("cart", m, logg, func(ctx context.Context, who identity.Identity, send func(string, any)) error {
		return svc.Watch(ctx, who.ID, func(c cart.Cart) {
			send("cart", newCartView(c))
		})
	})
}

// LiveOrders streams the caller's order history.
func LiveOrders(svc orders.Service, m *metrics.StorefrontMetrics, logg *logger.Logger) http.HandlerFunc {
	return serveLive("orders", m, logg, func(ctx context.Context, who identity.Identity, send func(string, any)) error {
		return svc.Watch(ctx, who.ID, func(list []orders.Order) {
			send("orders", newOrderViews(list))
		})
	})
}

// LivePix streams the caller's PIX state and countdown.
func LivePix(pix pixWatcher, m *metrics.StorefrontMetrics, logg *logger.Logger) http.HandlerFunc {
	return serveLive("pix", m, logg, func(ctx context.Context, who identity.Identity, send func(string, any)) error {
		pix.Watch(ctx, who.ID, func(status checkout.PixStatus) {
			send("pix", status)
		})
		return nil
	})
}

func serveLive(stream string, m *metrics.StorefrontMetrics, logg *logger.Logger, watch watchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		conn, err := liveUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			return
		}
		defer conn.Close()
		defer m.ListenerOpened(stream)()

		ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
		defer cancel()
		if logg != nil {
			ctx = logg.WithField(ctx, "stream", stream)
			logg.Debug(ctx, "live.opened")
			defer logg.Debug(ctx, "live.closed")
		}

		go readUntilClosed(conn, cancel)

		outbox := make(chan LiveMessage, liveBuffer)
		send := func(event string, data any) {
			select {
			case outbox <- LiveMessage{Event: event, Data: data}:
			case <-ctx.Done():
			}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer cancel()
			if err := watch(ctx, who, send); err != nil && logg != nil {
				logg.Error(ctx, "live.watch_failed", err)
			}
		}()

		writeLoop(ctx, conn, outbox, logg)
		cancel()
		<-done
	}
}

// readUntilClosed drains client frames so pongs and close frames are processed.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan LiveMessage, logg *logger.Logger) {
	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(liveWriteTimeout))
			return
		case msg := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				if logg != nil {
					logg.Debug(logg.WithField(ctx, "error", err.Error()), "live.write_failed")
				}
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		}
	}
}
