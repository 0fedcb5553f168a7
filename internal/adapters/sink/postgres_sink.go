package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// PostgresSink upserts eligible groups into a table keyed by payload and the
// stamp that opened the window. A group re-emitted by later scans, possibly
// with more stations, overwrites its earlier row.
type PostgresSink struct {
	db        *sql.DB
	tableName string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the group table when it does not exist yet.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+p.tableName+` (
	payload TEXT NOT NULL,
	window_secs BIGINT NOT NULL,
	window_frac_secs DOUBLE PRECISION NOT NULL,
	station_count INTEGER NOT NULL,
	members JSONB NOT NULL,
	PRIMARY KEY (payload, window_secs, window_frac_secs)
)`)
	return err
}

func (p *PostgresSink) WriteGroups(groups []domain.EligibleGroup) error {
	if len(groups) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (payload, window_secs, window_frac_secs, station_count, members) VALUES ")

	args := make([]any, 0, len(groups)*5)
	for i, g := range groups {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))
		members, err := json.Marshal(g.Members)
		if err != nil {
			return fmt.Errorf("marshal members: %w", err)
		}

		args = append(args,
			fmt.Sprintf("%x", uint64(g.Payload)),
			g.WindowStart.Secs,
			g.WindowStart.FracSecs,
			len(g.Members),
			members,
		)
	}

	b.WriteString(" ON CONFLICT (payload, window_secs, window_frac_secs) DO UPDATE SET")
	b.WriteString(" station_count = EXCLUDED.station_count, members = EXCLUDED.members")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

var _ ports.GroupSink = (*PostgresSink)(nil)
