package notify

import (
	"fmt"
	"net/url"

	"github.com/songon-extension/access-server/internal/util"
)

// WhatsAppMessage is the text pre-filled in a wa.me handoff. It never carries the access code.
type WhatsAppMessage struct {
	ClientName    string
	ParcelleNom   string
	ParcelleRef   string
	DocumentLabel string
}

func (m WhatsAppMessage) Text() string {
	name := m.ClientName
	if name == "" {
		name = "Client"
	}
	return fmt.Sprintf("Bonjour, je suis %s. Je souhaite recevoir le document \"%s\" pour la parcelle \"%s\" (Réf: %s).",
		name, m.DocumentLabel, m.ParcelleNom, m.ParcelleRef)
}

// WhatsAppLink builds https://wa.me/{digits}?text=... for phone. It returns an error
// when phone has no digits.
func WhatsAppLink(phone string, msg WhatsAppMessage) (string, error) {
	digits := util.PhoneDigits(phone)
	if digits == "" {
		return "", fmt.Errorf("whatsapp number has no digits")
	}
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(msg.Text()), nil
}
