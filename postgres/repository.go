package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/lzap/qctask"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultTable = "qc_objects"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"

	colID           = "id"
	colName         = "name"
	colTaskName     = "task_name"
	colDetector     = "detector"
	colActivityID   = "activity_id"
	colActivityType = "activity_type"
	colPeriodName   = "period_name"
	colPassName     = "pass_name"
	colProvenance   = "provenance"
	colCycle        = "cycle"
	colMetadata     = "metadata"
	colPayload      = "payload"
	colCreated      = "created"
)

const schema = `CREATE TABLE IF NOT EXISTS %[1]s (
	id            uuid PRIMARY KEY,
	name          text NOT NULL,
	task_name     text NOT NULL,
	detector      text NOT NULL,
	activity_id   integer NOT NULL,
	activity_type text NOT NULL DEFAULT '',
	period_name   text NOT NULL DEFAULT '',
	pass_name     text NOT NULL DEFAULT '',
	provenance    text NOT NULL DEFAULT '',
	cycle         integer NOT NULL,
	metadata      jsonb NOT NULL DEFAULT '{}',
	payload       jsonb NOT NULL,
	created       timestamp with time zone NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (detector, task_name, name, created DESC);`

// Repository appends every published monitor object version as a row of a single table.
type Repository struct {
	logger logr.Logger
	pool   Pool
	table  string
}

func NewRepository(logger logr.Logger, pool Pool, table string) *Repository {
	if table == "" {
		table = DefaultTable
	}
	return &Repository{logger: logger, pool: pool, table: table}
}

// Migrate creates the table and its lookup index when they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(schema,
		pgx.Identifier{r.table}.Sanitize(),
		pgx.Identifier{r.table + "_lookup_idx"}.Sanitize())
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return qctask.ErrStore.Context(err)
	}
	r.logger.V(1).Info("database schema ready", "table", r.table)
	return nil
}

func (r *Repository) insertQuery(objs []*qctask.MonitorObject) (string, error) {
	rows := make([]interface{}, 0, len(objs))
	for _, obj := range objs {
		metadata := obj.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		md, err := json.Marshal(metadata)
		if err != nil {
			return "", err
		}
		payload := obj.Payload
		if len(payload) == 0 {
			payload = []byte("null")
		}
		created := obj.Created
		if created.IsZero() {
			created = time.Now()
		}
		rows = append(rows, goqu.Record{
			colID:           obj.ID.String(),
			colName:         obj.Name,
			colTaskName:     obj.TaskName,
			colDetector:     obj.Detector,
			colActivityID:   obj.Activity.ID,
			colActivityType: obj.Activity.Type,
			colPeriodName:   obj.Activity.PeriodName,
			colPassName:     obj.Activity.PassName,
			colProvenance:   obj.Activity.Provenance,
			colCycle:        obj.Cycle,
			colMetadata:     goqu.L(castJsonb, string(md)),
			colPayload:      goqu.L(castJsonb, string(payload)),
			colCreated:      created.UTC(),
		})
	}

	query, _, err := goqu.Dialect(dialectPostgres).Insert(r.table).Rows(rows...).ToSQL()
	return query, err
}

func (r *Repository) Store(ctx context.Context, objs ...*qctask.MonitorObject) error {
	if len(objs) == 0 {
		return nil
	}
	query, err := r.insertQuery(objs)
	if err != nil {
		r.logger.Error(err, "failed to build insert query")
		return qctask.ErrStore.Context(err)
	}

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		r.logger.Error(err, "database execution failed", "count", len(objs))
		return qctask.ErrStore.Context(err)
	}
	r.logger.V(1).Info("stored monitor objects", "rows_affected", tag.RowsAffected())
	return nil
}

// Latest returns the most recently created version of an object.
func (r *Repository) Latest(ctx context.Context, detector, task, name string) (*qctask.MonitorObject, error) {
	query, _, err := goqu.Dialect(dialectPostgres).
		From(r.table).
		Select(
			goqu.L("?::text", goqu.C(colID)),
			goqu.C(colName), goqu.C(colTaskName), goqu.C(colDetector),
			goqu.C(colActivityID), goqu.C(colActivityType), goqu.C(colPeriodName), goqu.C(colPassName), goqu.C(colProvenance),
			goqu.C(colCycle), goqu.C(colMetadata), goqu.C(colPayload), goqu.C(colCreated),
		).
		Where(goqu.Ex{colDetector: detector, colTaskName: task, colName: name}).
		Order(goqu.C(colCreated).Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var (
		obj      qctask.MonitorObject
		id       string
		metadata []byte
	)
	err = r.pool.QueryRow(ctx, query).Scan(
		&id, &obj.Name, &obj.TaskName, &obj.Detector,
		&obj.Activity.ID, &obj.Activity.Type, &obj.Activity.PeriodName, &obj.Activity.PassName, &obj.Activity.Provenance,
		&obj.Cycle, &metadata, &obj.Payload, &obj.Created,
	)
	if err != nil {
		return nil, err
	}
	if obj.ID, err = uuid.Parse(id); err != nil {
		return nil, qctask.ErrDecode.Context(err)
	}
	if err := json.Unmarshal(metadata, &obj.Metadata); err != nil {
		return nil, qctask.ErrDecode.Context(err)
	}
	return &obj, nil
}

func (r *Repository) Close() {
	r.pool.Close()
}
