package msgcat

import (
	"go.uber.org/zap"

	"github.com/kapu/ledger-arcade/internal/obslog"
)

// Notifier turns session events into rendered catalog text and hands it
// to an output func. Rendering failures are logged and swallowed; a
// notice is never worth interrupting play over.
type Notifier struct {
	cat  *Catalog
	emit func(text string)
}

// NewNotifier wraps cat. emit may be nil, in which case notices are only
// logged.
func NewNotifier(cat *Catalog, emit func(text string)) *Notifier {
	return &Notifier{cat: cat, emit: emit}
}

// Notify implements the session notifier contract. Events map onto
// catalog keys; session_end picks the win/loss/draw variant.
func (n *Notifier) Notify(event string, args map[string]any) {
	key := keyFor(event, args)
	text, err := n.cat.Render(key, args)
	if err != nil {
		obslog.L().Warn("notice_render_failed",
			zap.String("event", event),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("notice", zap.String("event", event), zap.String("text", text))
	if n.emit != nil {
		n.emit(text)
	}
}

func keyFor(event string, args map[string]any) string {
	switch event {
	case "session_end":
		if draw, _ := args["Draw"].(bool); draw {
			return "session.end_draw"
		}
		if won, _ := args["Won"].(bool); won {
			return "session.end_win"
		}
		return "session.end_loss"
	case "submit_failed":
		return "session.submit_failed"
	case "draw_offered":
		return "session.draw_offered"
	case "lobby_gone":
		return "lobby.gone"
	case "lobby_timeout":
		return "lobby.timeout"
	case "lobby_created":
		return "lobby.created"
	default:
		return "session." + event
	}
}
