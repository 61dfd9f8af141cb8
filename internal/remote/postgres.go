package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourtanker/orderflow/internal/order"
)

const notifyChannel = "orders_changed"

// Postgres is the production Store. Orders live in a single table;
// snapshot pushes are driven by LISTEN/NOTIFY on the orders_changed
// channel, so every writer wakes every subscriber.
type Postgres struct {
	db  *sql.DB
	dsn string
}

// OpenPostgres connects to the given DSN and ensures the schema.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Unavailable(err)
	}

	p := &Postgres{db: db, dsn: dsn}
	if err := p.init(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) init() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		ref               TEXT PRIMARY KEY,
		id                TEXT NOT NULL,
		customer_key      TEXT NOT NULL,
		customer_name     TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		is_free           BOOLEAN NOT NULL DEFAULT FALSE,
		price             TEXT NOT NULL,
		delivery_type     TEXT NOT NULL,
		quantity          TEXT NOT NULL,
		address           TEXT NOT NULL DEFAULT '',
		landmark          TEXT NOT NULL DEFAULT '',
		coordinates       TEXT,
		secondary_contact TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("ensure orders table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Insert implements Store.
func (p *Postgres) Insert(ctx context.Context, rec order.Record) (Ref, error) {
	ref := Ref(uuid.Must(uuid.NewV7()).String())

	var coords any
	if rec.Coordinates != nil {
		raw, err := json.Marshal(rec.Coordinates)
		if err != nil {
			return "", fmt.Errorf("insert order: marshal coordinates: %w", err)
		}
		coords = string(raw)
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders
		(ref, id, customer_key, customer_name, status, is_free, price,
		 delivery_type, quantity, address, landmark, coordinates,
		 secondary_contact, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		string(ref), rec.ID, rec.CustomerKey, rec.CustomerName,
		string(rec.Status), rec.IsFree, rec.Price,
		string(rec.DeliveryType), string(rec.Quantity),
		rec.Address, rec.Landmark, coords,
		rec.SecondaryContact, rec.CreatedAt,
	)
	if err != nil {
		return "", Unavailable(err)
	}

	p.notify(ctx)
	return ref, nil
}

// UpdateStatus implements Store.
func (p *Postgres) UpdateStatus(ctx context.Context, ref Ref, status order.Status) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE ref = $2`,
		string(status), string(ref),
	)
	if err != nil {
		return Unavailable(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUnknownRef
	}

	p.notify(ctx)
	return nil
}

// notify wakes subscribers. A failed notify is not fatal: the write
// itself succeeded and subscribers will catch up on the next change.
func (p *Postgres) notify(ctx context.Context) {
	_, _ = p.db.ExecContext(ctx, `SELECT pg_notify($1, '')`, notifyChannel)
}

// Subscribe implements Store. The initial snapshot is queried eagerly
// so subscription failure is reported here, not later; subsequent
// snapshots are re-queried on every notification.
func (p *Postgres) Subscribe(ctx context.Context, fn SnapshotFunc) (CancelFunc, error) {
	snap, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	listener := pq.NewListener(p.dsn, 2*time.Second, time.Minute, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, Unavailable(err)
	}

	fn(snap)

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			listener.Close()
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case n := <-listener.Notify:
				// n is nil after a connection loss; the listener
				// reconnects on its own, re-query either way.
				_ = n
				snap, err := p.snapshot(ctx)
				if err != nil {
					continue
				}
				fn(snap)
			}
		}
	}()

	return cancel, nil
}

// snapshot reads the full ordered view.
func (p *Postgres) snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ref, id, customer_key, customer_name, status, is_free,
		       price, delivery_type, quantity, address, landmark,
		       coordinates, secondary_contact, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, Unavailable(err)
	}
	defer rows.Close()

	var snap Snapshot
	for rows.Next() {
		var (
			rec    order.Record
			ref    string
			status string
			dt     string
			qty    string
			coords sql.NullString
		)
		if err := rows.Scan(
			&ref, &rec.ID, &rec.CustomerKey, &rec.CustomerName,
			&status, &rec.IsFree, &rec.Price, &dt, &qty,
			&rec.Address, &rec.Landmark, &coords,
			&rec.SecondaryContact, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		rec.RemoteRef = ref
		rec.Status = order.Status(status)
		rec.DeliveryType = order.DeliveryType(dt)
		rec.Quantity = order.Quantity(qty)
		if coords.Valid && coords.String != "" {
			var c order.Coordinates
			if err := json.Unmarshal([]byte(coords.String), &c); err == nil {
				rec.Coordinates = &c
			}
		}
		snap = append(snap, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(err)
	}
	return snap, nil
}
