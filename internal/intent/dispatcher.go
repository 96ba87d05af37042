package intent

import (
	"fmt"
	"strings"

	"github.com/kangban/companion/domain/entities"
)

// Directive prefixes the assistant encodes into an otherwise free-text
// reply line.
const (
	callPrefix  = "CALL:"
	alertPrefix = "ALERT:"
)

// Dispatch classifies a raw assistant reply by prefix and resolves it
// against the contact directory. Unrecognized prefixes are plain replies;
// a call to a name not on file yields a directive with an empty number
// rather than an error.
func Dispatch(reply string, contacts map[string]string) entities.Directive {
	reply = strings.TrimSpace(reply)

	switch {
	case strings.HasPrefix(reply, callPrefix):
		name := strings.TrimSpace(strings.TrimPrefix(reply, callPrefix))
		return entities.Directive{
			Kind:        entities.DirectiveCall,
			Display:     fmt.Sprintf("正在呼叫%s...", name),
			ContactName: name,
			Number:      contacts[name],
		}
	case strings.HasPrefix(reply, alertPrefix):
		description := strings.TrimSpace(strings.TrimPrefix(reply, alertPrefix))
		return entities.Directive{
			Kind:    entities.DirectiveAlert,
			Display: fmt.Sprintf("健康警报：%s，已通知家属", description),
		}
	default:
		return entities.Directive{
			Kind:    entities.DirectivePlain,
			Display: reply,
		}
	}
}
