package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/sse"
	"github.com/songon-extension/access-server/internal/util"
)

// EventPublisher pushes live feed events. *sse.Broker implements it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event sse.Event) error
}

// AccessRecorder appends granted accesses to the audit log without blocking the caller.
type AccessRecorder interface {
	Record(ctx context.Context, entry model.AccessLogEntry)
}

func publish(ctx context.Context, publisher EventPublisher, eventType string, data any) {
	if publisher == nil {
		return
	}
	event, err := sse.NewEvent(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to encode live event")
		return
	}
	if err := publisher.Publish(ctx, sse.TopicAdmin, event); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("failed to publish live event")
	}
}

// sealCameraFields encrypts stream locators before they are written.
func sealCameraFields(box *util.SecretBox, videoURL string, configs model.ParcelleConfigs) (string, model.ParcelleConfigs, error) {
	sealedURL, err := box.Seal(videoURL)
	if err != nil {
		return "", nil, err
	}
	sealedConfigs := make(model.ParcelleConfigs, len(configs))
	for id, cfg := range configs {
		cfg.VideoURL, err = box.Seal(cfg.VideoURL)
		if err != nil {
			return "", nil, err
		}
		sealedConfigs[id] = cfg
	}
	return sealedURL, sealedConfigs, nil
}

// openCode returns a copy of code with stream locators decrypted. A locator that
// cannot be decrypted is blanked, which denies the stream rather than leaking ciphertext.
func openCode(box *util.SecretBox, code *model.AccessCode) *model.AccessCode {
	if code == nil {
		return nil
	}
	out := *code

	url, err := box.Open(code.VideoURL)
	if err != nil {
		log.Error().Err(err).Str("accessCodeId", code.ID).Msg("failed to decrypt video url")
		url = ""
	}
	out.VideoURL = url

	if len(code.ParcelleConfigs) > 0 {
		out.ParcelleConfigs = make(model.ParcelleConfigs, len(code.ParcelleConfigs))
		for id, cfg := range code.ParcelleConfigs {
			opened, err := box.Open(cfg.VideoURL)
			if err != nil {
				log.Error().Err(err).Str("accessCodeId", code.ID).Str("parcelleId", id).Msg("failed to decrypt parcel video url")
				opened = ""
			}
			cfg.VideoURL = opened
			out.ParcelleConfigs[id] = cfg
		}
	}
	return &out
}

func newAccessEntry(d *model.Decision, parcelle *model.Parcelle, documentType string, at time.Time) model.AccessLogEntry {
	entry := model.AccessLogEntry{
		Code:         d.Code,
		ClientName:   d.ClientName,
		ParcelleID:   d.ParcelleID,
		DocumentType: documentType,
		Timestamp:    at,
	}
	if parcelle != nil {
		entry.ParcelleNom = parcelle.Nom
	}
	return entry
}
