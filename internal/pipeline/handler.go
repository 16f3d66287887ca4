package pipeline

import (
	"context"
	"errors"
	"fmt"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

// Handler executes one pipeline stage for one unit. Kind says which record
// the unit id names; Target is the status the unit holds after a successful
// run, used for the idempotent-skip check on redelivery. A handler with an
// empty Target runs on every delivery (sync re-runs as chapters finish).
type Handler interface {
	Channel() queue.Channel
	Kind() string
	Target() stage.Status
	Execute(ctx context.Context, unitID string) error
}

// Handlers builds the full stage set for an environment, indexed by channel.
func Handlers(env *Env) map[queue.Channel]Handler {
	set := []Handler{
		&discoverHandler{env: env},
		&metadataHandler{env: env},
		&chapterHandler{env: env},
		&synthesizeHandler{env: env},
		&convertHandler{env: env},
		&completeHandler{env: env},
		&syncHandler{env: env},
	}
	handlers := make(map[queue.Channel]Handler, len(set))
	for _, h := range set {
		handlers[h.Channel()] = h
	}
	return handlers
}

// unitStatus reads the current lifecycle status of a unit by record kind.
func unitStatus(ctx context.Context, env *Env, kind, unitID string) (stage.Status, error) {
	switch kind {
	case records.KindBook:
		book, err := env.Store.GetBook(ctx, unitID)
		if err != nil {
			return "", err
		}
		return book.Status, nil
	case records.KindChapter:
		chapter, err := env.Store.GetChapter(ctx, unitID)
		if err != nil {
			return "", err
		}
		return chapter.StageStatus, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, records.ErrNotFound)
}

// storeErr reclassifies record store failures so the worker releases the task
// for redelivery instead of burning the retry budget. A missing record is a
// real failure, not an outage.
func storeErr(stageName, operation string, err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return services.Wrap(services.ErrNotFound, stageName, operation, "", err)
	}
	return services.Wrap(services.ErrStoreUnavailable, stageName, operation, "", err)
}
