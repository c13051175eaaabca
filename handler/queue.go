package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-splitter/dto"
	"video-splitter/service"
)

// ProcessVideoMessage handles a queued request to split an object that was
// already uploaded to the bucket. The outcome is announced through the
// completion event, not a reply.
func ProcessVideoMessage(ctx context.Context, msg amqp.Delivery, svc service.Service) error {
	var req dto.ProcessVideoRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal segmentation request")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", req.SessionID.String()).
		Str("object", req.ObjectName).
		Msg("received segmentation request")

	res, err := svc.ProcessObject(ctx, req)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", res.Session.ID.String()).
		Int("segment_count", res.Document.SegmentCount).
		Msg("segmentation request completed")
	return nil
}
