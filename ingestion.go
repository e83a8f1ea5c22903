package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/donbr/graphrag-platform/pkg/embedder"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// perSegmentTimeout bounds one segment's embedding plus graph writes so a
// stalled provider call never blocks sibling workers.
const perSegmentTimeout = 60 * time.Second

type segmentResult struct {
	segment types.Segment
	skipped bool
	failure *types.SegmentFailure
}

// Ingest converts a batch of transcript segments into graph mutations:
// Content upserts with embeddings, Speaker and Topic upserts linked by
// natural key, and FOLLOWS edges in source order. Segments are processed
// concurrently by a bounded worker pool; one segment's failure never aborts
// its siblings. Re-ingesting an identical batch is idempotent.
func (c *Client) Ingest(ctx context.Context, datasetName string, segments []types.Segment) (*types.IngestReport, error) {
	if strings.TrimSpace(datasetName) == "" {
		return nil, &types.ValidationError{Field: "dataset", Reason: "dataset name must not be empty"}
	}

	started := time.Now()
	c.logger.Info("starting ingestion", "dataset", datasetName, "segments", len(segments))

	results := make([]segmentResult, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.IngestWorkers)
	for i, seg := range segments {
		g.Go(func() error {
			results[i] = c.ingestSegment(gctx, datasetName, seg)
			return nil
		})
	}
	// Workers only report per-segment outcomes, never errors.
	_ = g.Wait()

	report := &types.IngestReport{Dataset: datasetName}
	var succeeded []types.Segment
	for _, r := range results {
		switch {
		case r.skipped:
			report.Skipped++
		case r.failure != nil:
			report.Failed = append(report.Failed, *r.failure)
		default:
			report.Succeeded++
			succeeded = append(succeeded, r.segment)
		}
	}

	// FOLLOWS edges derive from each segment's source order, never from
	// worker completion order.
	c.linkFollows(ctx, succeeded, report)

	report.Elapsed = time.Since(started)
	c.logger.Info("persisting ingestion report",
		"dataset", datasetName,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", len(report.Failed),
		"elapsed", report.Elapsed)
	return report, nil
}

func (c *Client) ingestSegment(ctx context.Context, dataset string, seg types.Segment) segmentResult {
	if strings.TrimSpace(seg.ID) == "" || strings.TrimSpace(seg.Text) == "" {
		c.logger.Warn("skipping malformed segment", "dataset", dataset, "segment_id", seg.ID)
		return segmentResult{segment: seg, skipped: true}
	}

	ctx, cancel := context.WithTimeout(ctx, perSegmentTimeout)
	defer cancel()

	content := &types.Content{
		ID:              seg.ID,
		Title:           seg.Title,
		Text:            seg.Text,
		Type:            types.ContentTypeSegment,
		Dataset:         dataset,
		StartTime:       seg.StartTime,
		EndTime:         seg.EndTime,
		SourceOrder:     seg.Order,
		Embedding:       seg.Embedding,
		EmbeddingStatus: types.EmbeddingPresent,
	}

	dims := c.registry.Dimensions()
	switch {
	case len(seg.Embedding) > 0:
		if len(seg.Embedding) != dims {
			return fail(seg, fmt.Sprintf("embedding has %d dimensions, schema declares %d", len(seg.Embedding), dims))
		}
	default:
		vec, err := c.embedder.EmbedSingle(ctx, seg.Text)
		switch {
		case err == nil && len(vec) != dims:
			return fail(seg, fmt.Sprintf("provider returned %d dimensions, schema declares %d", len(vec), dims))
		case err == nil:
			content.Embedding = vec
		case embedder.IsTransient(err):
			// Deferred backfill: persist the node without a vector so
			// full-text search still reaches it and vector queries skip it.
			c.logger.Warn("embedding deferred", "segment_id", seg.ID, "error", err)
			content.Embedding = nil
			content.EmbeddingStatus = types.EmbeddingPending
		default:
			return fail(seg, fmt.Sprintf("embedding failed: %v", err))
		}
	}

	if err := c.driver.UpsertContent(ctx, content); err != nil {
		return fail(seg, fmt.Sprintf("content upsert failed: %v", err))
	}

	if strings.TrimSpace(seg.Speaker) != "" {
		speaker, err := c.driver.UpsertSpeaker(ctx, dataset, seg.Speaker)
		if err != nil {
			return fail(seg, fmt.Sprintf("speaker upsert failed: %v", err))
		}
		if err := c.driver.LinkHasSpeaker(ctx, seg.ID, speaker.ID); err != nil {
			return fail(seg, fmt.Sprintf("speaker link failed: %v", err))
		}
	}

	for _, dt := range seg.Topics {
		if strings.TrimSpace(dt.Name) == "" {
			continue
		}
		topic, err := c.driver.UpsertTopic(ctx, dataset, dt)
		if err != nil {
			return fail(seg, fmt.Sprintf("topic upsert failed for %q: %v", dt.Name, err))
		}
		if err := c.driver.LinkMentions(ctx, seg.ID, topic.ID); err != nil {
			return fail(seg, fmt.Sprintf("topic link failed for %q: %v", dt.Name, err))
		}
	}

	if err := c.ingestCodeBlocks(ctx, dataset, seg); err != nil {
		return fail(seg, fmt.Sprintf("code block upsert failed: %v", err))
	}

	return segmentResult{segment: seg}
}

// ingestCodeBlocks stores code blocks detected inside a segment as their own
// Content nodes. They carry no vector; the full-text index covers them.
func (c *Client) ingestCodeBlocks(ctx context.Context, dataset string, seg types.Segment) error {
	for i, block := range seg.CodeBlocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		node := &types.Content{
			ID:              fmt.Sprintf("%s-code-%d", seg.ID, i),
			Title:           seg.Title,
			Text:            block,
			Type:            types.ContentTypeCodeBlock,
			Dataset:         dataset,
			StartTime:       seg.StartTime,
			EndTime:         seg.EndTime,
			SourceOrder:     seg.Order,
			EmbeddingStatus: types.EmbeddingPending,
		}
		if err := c.driver.UpsertContent(ctx, node); err != nil {
			return err
		}
	}
	return nil
}

// BackfillEmbeddings embeds content nodes left pending by transient provider
// failures and attaches the vectors, flipping them to present. Texts are sent
// to the provider in batches of EmbedBatchSize. Returns the number of nodes
// backfilled; a node whose vector cannot be attached is left pending for the
// next run.
func (c *Client) BackfillEmbeddings(ctx context.Context, datasetName string, limit int) (int, error) {
	if strings.TrimSpace(datasetName) == "" {
		return 0, &types.ValidationError{Field: "dataset", Reason: "dataset name must not be empty"}
	}
	if limit <= 0 {
		limit = c.config.EmbedBatchSize
	}

	pending, err := c.driver.GetPendingEmbeddings(ctx, datasetName, limit)
	if err != nil {
		return 0, fmt.Errorf("listing pending embeddings: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	dims := c.registry.Dimensions()
	backfilled := 0
	for start := 0; start < len(pending); start += c.config.EmbedBatchSize {
		end := start + c.config.EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, node := range batch {
			texts[i] = node.Text
		}

		vectors, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return backfilled, fmt.Errorf("embedding backfill batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return backfilled, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, node := range batch {
			if len(vectors[i]) != dims {
				c.logger.Warn("backfill vector dimension mismatch",
					"content_id", node.ID, "got", len(vectors[i]), "want", dims)
				continue
			}
			if err := c.driver.AttachEmbedding(ctx, node.ID, vectors[i]); err != nil {
				c.logger.Warn("backfill attach failed", "content_id", node.ID, "error", err)
				continue
			}
			backfilled++
		}
	}

	c.logger.Info("persisting embedding backfill",
		"dataset", datasetName, "pending", len(pending), "backfilled", backfilled)
	return backfilled, nil
}

// linkFollows writes the FOLLOWS chain over the succeeded segments in source
// order, tie-breaking equal orders by id. A failed link is recorded against
// the target segment and never aborts the remaining pairs.
func (c *Client) linkFollows(ctx context.Context, segments []types.Segment, report *types.IngestReport) {
	if len(segments) < 2 {
		return
	}

	ordered := make([]types.Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ID < ordered[j].ID
	})

	for i := 1; i < len(ordered); i++ {
		if err := c.driver.LinkFollows(ctx, ordered[i-1].ID, ordered[i].ID); err != nil {
			c.logger.Warn("follows link failed",
				"from", ordered[i-1].ID, "to", ordered[i].ID, "error", err)
			report.Failed = append(report.Failed, types.SegmentFailure{
				SegmentID: ordered[i].ID,
				Reason:    fmt.Sprintf("follows link from %s failed: %v", ordered[i-1].ID, err),
			})
		}
	}
}

func fail(seg types.Segment, reason string) segmentResult {
	return segmentResult{
		segment: seg,
		failure: &types.SegmentFailure{SegmentID: seg.ID, Reason: reason},
	}
}
