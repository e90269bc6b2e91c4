package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/tieubaoca/kb-pipeline/utils"
	"golang.org/x/sync/errgroup"
)

// DescribeService fans image-description calls out over a bounded worker
// pool. Each image is independent, so all images of one article run
// concurrently up to the configured limit; transient failures retry with
// exponential backoff and exhaustion substitutes a placeholder instead of
// aborting the article.
type DescribeService struct {
	describer    ImageDescriber
	workers      int
	maxAttempts  int
	initialDelay time.Duration
}

func NewDescribeService(describer ImageDescriber, workers int, retry config.RetryConfig) *DescribeService {
	if workers < 1 {
		workers = 1
	}
	return &DescribeService{
		describer:    describer,
		workers:      workers,
		maxAttempts:  retry.MaxAttempts,
		initialDelay: retry.InitialDelay(),
	}
}

// DescribeAll returns a description per filename. Entries already present in
// cached are reused without another model call. Recoverable issues come back
// as warnings; the only hard error is context cancellation.
func (s *DescribeService) DescribeAll(ctx context.Context, articleDir string, filenames []string, cached map[string]types.ImageDescription) (map[string]types.ImageDescription, []string, error) {
	results := make(map[string]types.ImageDescription, len(filenames))
	var warnings []string
	var mu sync.Mutex

	// Cached entries are settled before any worker starts, so only the
	// workers ever touch the result map concurrently.
	seen := make(map[string]bool)
	var pending []string
	for _, filename := range filenames {
		if seen[filename] {
			continue
		}
		seen[filename] = true

		if desc, ok := cached[filename]; ok {
			results[filename] = desc
			continue
		}
		pending = append(pending, filename)
	}

	var eg errgroup.Group
	eg.SetLimit(s.workers)

	for _, filename := range pending {
		filename := filename
		eg.Go(func() error {
			desc, warning := s.describeOne(ctx, articleDir, filename)
			mu.Lock()
			results[filename] = desc
			if warning != "" {
				warnings = append(warnings, warning)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return results, warnings, nil
}

func (s *DescribeService) describeOne(ctx context.Context, articleDir, filename string) (types.ImageDescription, string) {
	imagePath, ok := utils.FindImageFile(articleDir, filename)
	if !ok {
		log.Printf("Image not found in staging: %s", filename)
		return PlaceholderDescription(filename), "image file not found: " + filename
	}
	image, err := os.ReadFile(imagePath)
	if err != nil {
		log.Printf("Failed to read image %s: %v", filename, err)
		return PlaceholderDescription(filename), "failed to read image: " + filename
	}

	var desc types.ImageDescription
	err = utils.Retry(ctx, s.maxAttempts, s.initialDelay, IsRetryable, func() error {
		var callErr error
		desc, callErr = s.describer.Describe(ctx, filename, image)
		return callErr
	})
	if err != nil {
		log.Printf("Failed to describe image %s after %d attempts: %v", filename, s.maxAttempts, err)
		return PlaceholderDescription(filename), "placeholder description for " + filename
	}
	log.Printf("Described image %s (%d chars)", filename, len(desc.Description))
	return desc, ""
}

// Description cache: one JSON file per article in the serving directory,
// keyed by source filename. Present entries are never regenerated; deleting
// the file forces a refresh.

const descriptionCacheFile = "descriptions.json"

func LoadDescriptionCache(path string) map[string]types.ImageDescription {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]types.ImageDescription{}
	}
	var cache map[string]types.ImageDescription
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Printf("Ignoring unreadable description cache %s: %v", path, err)
		return map[string]types.ImageDescription{}
	}
	return cache
}

func SaveDescriptionCache(path string, cache map[string]types.ImageDescription) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
