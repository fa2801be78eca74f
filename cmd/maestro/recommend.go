package main

import (
	"context"
	"fmt"

	"github.com/creatorkit/maestro/pkg/cmd"
	maestrolog "github.com/creatorkit/maestro/pkg/log"
	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/scheduling"
)

func recommendSlots(ctx context.Context, databaseURL, platformName string, topN int) error {
	platform := models.Platform(platformName)
	if !platform.Valid() {
		return fmt.Errorf("unknown platform: %q", platformName)
	}

	logger := maestrolog.WithModule("recommend")

	store, err := cmd.NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := store.Close(ctx); closeErr != nil {
			logger.Error("Failed to close persistence", "error", closeErr)
		}
	}()

	predictor := scheduling.New(store.Engagement(), scheduling.Config{}, logger)

	recommendations, err := predictor.Recommend(ctx, platform, topN)
	if err != nil {
		return err
	}

	for i, slot := range recommendations {
		fmt.Printf("%d. %s %02d:00  score=%.3f confidence=%.2f\n",
			i+1, slot.Weekday, slot.Hour, slot.Score, slot.Confidence)
	}

	return nil
}
