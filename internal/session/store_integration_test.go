package session_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/integration/database/mongo"
	"github.com/dmitrymomot/handoff/integration/database/pg"
	"github.com/dmitrymomot/handoff/internal/db"
	"github.com/dmitrymomot/handoff/internal/session"
)

// Integration stores run only when TEST_PG_URL / TEST_MONGO_URI are set.

func postgresStore(t *testing.T) session.Store {
	t.Helper()

	url := os.Getenv("TEST_PG_URL")
	if url == "" {
		t.Skip("TEST_PG_URL not set")
	}

	ctx := context.Background()
	cfg := pg.Config{ConnectionString: url, RetryAttempts: 1, MigrationsPath: "migrations", MigrationsTable: "schema_migrations"}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, cfg, nil, db.Migrations))
	return session.NewPostgresStore(pool)
}

func mongoStore(t *testing.T) session.Store {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	database, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  uri,
		Database:       fmt.Sprintf("handoff_test_%d", time.Now().UnixNano()),
		ConnectTimeout: 10 * time.Second,
		RetryAttempts:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = database.Client().Disconnect(context.Background())
	})

	store := session.NewMongoStore(database)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestPersistentStores(t *testing.T) {
	stores := map[string]func(*testing.T) session.Store{
		"postgres": postgresStore,
		"mongo":    mongoStore,
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)
			id := fmt.Sprintf("it-%s-%d", name, time.Now().UnixNano())

			s := session.New(id, "user-1", now)
			msg, err := session.NewMessage("wedding in summer", session.SenderUser, now)
			require.NoError(t, err)
			s.Append(msg)
			s.AddTags("#Wedding")
			s.Intent = session.Intent{Occasion: "wedding", Budget: 200}
			s.SetTransferToken("tok-1", now.Add(5*time.Minute))
			require.NoError(t, store.Save(ctx, s))

			got, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "user-1", got.UserID)
			assert.Equal(t, []string{"#Wedding"}, got.Tags)
			assert.Equal(t, "wedding", got.Intent.Occasion)
			require.Len(t, got.History, 1)
			assert.Equal(t, "wedding in summer", got.History[0].Text)
			assert.Equal(t, "tok-1", got.QRCode)
			assert.Equal(t, session.StatusActive, got.Status)

			stale := got.Clone()
			require.NoError(t, got.MarkTransferred("kiosk-1", now))
			require.NoError(t, store.Save(ctx, got))

			stale.AddTags("#SummerWear")
			require.NoError(t, store.Save(ctx, stale))

			final, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, session.StatusTransferred, final.Status)
			assert.Equal(t, "kiosk-1", final.KioskID)
			assert.ElementsMatch(t, []string{"#Wedding", "#SummerWear"}, final.Tags)

			require.NoError(t, store.Delete(ctx, id))
			_, err = store.Get(ctx, id)
			assert.ErrorIs(t, err, session.ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, id), session.ErrNotFound)
		})
	}
}
