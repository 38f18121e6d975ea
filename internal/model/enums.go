package model

type ProfileType string

const (
	ProfileProspect     ProfileType = "PROSPECT"
	ProfileProprietaire ProfileType = "PROPRIETAIRE"
)

func (p ProfileType) Valid() bool {
	return p == ProfileProspect || p == ProfileProprietaire
}

type ParcelleStatut string

const (
	StatutDisponible ParcelleStatut = "disponible"
	StatutOption     ParcelleStatut = "option"
	StatutVendu      ParcelleStatut = "vendu"
)

func (s ParcelleStatut) Valid() bool {
	switch s {
	case StatutDisponible, StatutOption, StatutVendu:
		return true
	}
	return false
}

// Action is what a client does with a granted document.
type Action string

const (
	ActionPreview  Action = "preview"
	ActionDownload Action = "download"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}
