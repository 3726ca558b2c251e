package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// multipartThreshold switches uploads to the multipart path.
const multipartThreshold = 8 * 1024 * 1024

// archiveLine is one JSONL row of a market archive.
type archiveLine struct {
	Kind   string            `json:"kind"`
	Market *domain.Market    `json:"market,omitempty"`
	Bet    *domain.BetRecord `json:"bet,omitempty"`
	Event  *domain.Event     `json:"event,omitempty"`
}

// MarketArchiver writes one JSONL object per settled market holding the
// market, every journaled bet attempt, and the events seen while tracking it.
// The journal and audit store are optional.
type MarketArchiver struct {
	writer  domain.BlobWriter
	journal domain.BetJournal
	audit   domain.AuditStore
}

// NewMarketArchiver creates a MarketArchiver.
func NewMarketArchiver(writer domain.BlobWriter, journal domain.BetJournal, audit domain.AuditStore) *MarketArchiver {
	return &MarketArchiver{writer: writer, journal: journal, audit: audit}
}

// ArchiveMarket uploads the archive and returns its key.
func (a *MarketArchiver) ArchiveMarket(ctx context.Context, market domain.Market, events []domain.Event) (string, error) {
	lines := []archiveLine{{Kind: "market", Market: &market}}

	if a.journal != nil {
		bets, err := a.journal.ListByMarket(ctx, market.ID, domain.ListOpts{})
		if err != nil {
			return "", fmt.Errorf("s3blob: archive market %s bets: %w", market.ID, err)
		}
		for i := range bets {
			lines = append(lines, archiveLine{Kind: "bet", Bet: &bets[i]})
		}
	}
	for i := range events {
		lines = append(lines, archiveLine{Kind: "event", Event: &events[i]})
	}

	buf, err := marshalJSONL(lines)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive market %s marshal: %w", market.ID, err)
	}

	key := archivePath(market)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive market %s upload: %w", market.ID, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.market", map[string]any{
			"path":      key,
			"market_id": market.ID,
			"lines":     len(lines),
		}); err != nil {
			return key, fmt.Errorf("s3blob: archive market %s audit log: %w", market.ID, err)
		}
	}
	return key, nil
}

// archivePath partitions archives by the market's close month:
//
//	archive/markets/2026-03/<market id>.jsonl
func archivePath(m domain.Market) string {
	end := m.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return fmt.Sprintf("archive/markets/%s/%s.jsonl", end.UTC().Format("2006-01"), m.ID)
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
