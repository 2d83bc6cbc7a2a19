package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

const defaultHistoryTable = "marketpulse_channel_daily"

// ClickHouseHistory archives one row per channel and day. The table is a
// ReplacingMergeTree so re-reporting a day keeps the latest row.
type ClickHouseHistory struct {
	db    *sql.DB
	table string
	log   *applogger.Logger
	now   func() time.Time
}

var _ repository.HistoryStore = (*ClickHouseHistory)(nil)

func NewClickHouseHistory(db *sql.DB, table string, log *applogger.Logger) *ClickHouseHistory {
	if table == "" {
		table = defaultHistoryTable
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &ClickHouseHistory{db: db, table: table, log: log, now: time.Now}
}

func (h *ClickHouseHistory) schema() string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            day           Date,
            channel       LowCardinality(String),
            source        LowCardinality(String),
            revenue       Float64,
            orders        Float64,
            conversion    Float64,
            ad_spend      Float64,
            month_revenue Float64,
            month_ad_spend Float64,
            recorded_at   DateTime
        )
        ENGINE = ReplacingMergeTree(recorded_at)
        ORDER BY (channel, day)
    `, h.table)
}

func (h *ClickHouseHistory) Init(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, h.schema()); err != nil {
		return fmt.Errorf("init history table: %w", err)
	}
	return nil
}

// HistoryRows flattens a snapshot. Failed channels carry no figures and are skipped.
func HistoryRows(s *models.Snapshot, recordedAt time.Time) []models.HistoryRow {
	if s == nil {
		return nil
	}
	day := util.StartOfDay(s.AsOf)
	rows := make([]models.HistoryRow, 0, len(s.Channels))
	for _, ch := range s.Channels {
		if ch.Source == models.SourceError {
			continue
		}
		rows = append(rows, models.HistoryRow{
			Day:          day,
			Channel:      ch.Channel,
			Source:       ch.Source,
			Revenue:      ch.Today.Revenue,
			Orders:       ch.Today.Orders,
			Conversion:   ch.Today.Conversion,
			AdSpend:      ch.Today.AdSpend,
			MonthRevenue: ch.Month.Revenue,
			MonthAdSpend: ch.Month.AdSpend,
			RecordedAt:   recordedAt,
		})
	}
	return rows
}

func (h *ClickHouseHistory) StoreSnapshot(ctx context.Context, s *models.Snapshot) error {
	rows := HistoryRows(s, h.now())
	if len(rows) == 0 {
		return nil
	}

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*10)
	for _, r := range rows {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.Day, r.Channel, string(r.Source),
			r.Revenue, r.Orders, r.Conversion, r.AdSpend,
			r.MonthRevenue, r.MonthAdSpend, r.RecordedAt,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (day, channel, source, revenue, orders, conversion, ad_spend, month_revenue, month_ad_spend, recorded_at) VALUES %s",
		h.table, strings.Join(values, ","))
	if _, err := h.db.ExecContext(ctx, q, args...); err != nil {
		h.log.Error("clickhouse store history error",
			applogger.String("table", h.table),
			applogger.Int("rows", len(rows)),
			applogger.Error(err))
		return fmt.Errorf("store history: %w", err)
	}
	return nil
}

// Query returns a channel's rows between from and to, inclusive, oldest first.
func (h *ClickHouseHistory) Query(ctx context.Context, channel string, from, to time.Time) ([]models.HistoryRow, error) {
	const qtpl = `
        SELECT day, channel, source, revenue, orders, conversion, ad_spend, month_revenue, month_ad_spend, recorded_at
        FROM %s FINAL
        WHERE channel = ? AND day >= ? AND day <= ?
        ORDER BY day ASC
    `
	rows, err := h.db.QueryContext(ctx, fmt.Sprintf(qtpl, h.table), channel, util.StartOfDay(from), util.StartOfDay(to))
	if err != nil {
		h.log.Error("clickhouse query history error",
			applogger.String("table", h.table),
			applogger.String("channel", channel),
			applogger.Error(err))
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistoryRow, 0, 32)
	for rows.Next() {
		var (
			r   models.HistoryRow
			src string
		)
		if err := rows.Scan(&r.Day, &r.Channel, &src, &r.Revenue, &r.Orders, &r.Conversion,
			&r.AdSpend, &r.MonthRevenue, &r.MonthAdSpend, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Source = models.Source(src)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Close is a no-op: the pool belongs to pkg/clickhouse.Client.
func (h *ClickHouseHistory) Close() error { return nil }
