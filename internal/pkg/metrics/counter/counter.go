package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	dealViewsKey  = "deal:counters:views"
	dealClaimsKey = "deal:counters:claims"
)

// Counters buffers per-deal view and claim increments in Redis hashes and
// periodically folds them into the deals table.
type Counters struct {
	rdb redis.Cmdable
	db  *gorm.DB
}

// New creates deal counters.
func New(rdb redis.Cmdable, db *gorm.DB) *Counters {
	return &Counters{rdb: rdb, db: db}
}

// AddDealView increments the pending view counter for a deal in Redis
func (c *Counters) AddDealView(ctx context.Context, dealID uint) error {
	field := strconv.FormatUint(uint64(dealID), 10)
	return c.rdb.HIncrBy(ctx, dealViewsKey, field, 1).Err()
}

// IncrementClaim increments the pending claim counter for a deal in Redis
func (c *Counters) IncrementClaim(ctx context.Context, dealID uint) error {
	field := strconv.FormatUint(uint64(dealID), 10)
	return c.rdb.HIncrBy(ctx, dealClaimsKey, field, 1).Err()
}

// FlushAll flushes views and claims to the database
func (c *Counters) FlushAll(ctx context.Context) error {
	if err := c.flushHashToTable(ctx, dealViewsKey, "view_count"); err != nil {
		return fmt.Errorf("flush views: %w", err)
	}
	if err := c.flushHashToTable(ctx, dealClaimsKey, "claim_count"); err != nil {
		return fmt.Errorf("flush claims: %w", err)
	}
	return nil
}

// flushHashToTable drains a Redis hash and applies the increments to the
// deals table. The hash is renamed first so increments arriving during the
// flush land in a fresh hash. The renamed hash is only dropped once the
// database accepted the deltas; otherwise they are merged back.
func (c *Counters) flushHashToTable(ctx context.Context, redisKey, column string) error {
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := c.rdb.Rename(ctx, redisKey, tmpKey).Err(); err != nil {
		if errors.Is(err, redis.Nil) || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}

	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return c.restore(ctx, redisKey, tmpKey, err)
	}
	if err := ApplyIncrements(ctx, c.db, "deals", column, parseIncrements(data)); err != nil {
		return c.restore(ctx, redisKey, tmpKey, err)
	}
	return c.rdb.Del(ctx, tmpKey).Err()
}

// restore folds the parked deltas of tmpKey back into redisKey and returns
// cause. The fields are added, so increments that arrived meanwhile are kept.
func (c *Counters) restore(ctx context.Context, redisKey, tmpKey string, cause error) error {
	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return fmt.Errorf("%w (deltas parked in %s: %v)", cause, tmpKey, err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, v := range data {
			inc, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil || inc == 0 {
				continue
			}
			pipe.HIncrBy(ctx, redisKey, field, inc)
		}
		pipe.Del(ctx, tmpKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w (deltas parked in %s: %v)", cause, tmpKey, err)
	}
	return cause
}

// Increment is a pending delta for one row.
type Increment struct {
	ID  uint64
	Inc int64
}

func parseIncrements(data map[string]string) []Increment {
	incs := make([]Increment, 0, len(data))
	for k, v := range data {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		inc, err := strconv.ParseInt(v, 10, 64)
		if err != nil || inc == 0 {
			continue
		}
		incs = append(incs, Increment{ID: id, Inc: inc})
	}
	sort.Slice(incs, func(i, j int) bool { return incs[i].ID < incs[j].ID })
	return incs
}

// ApplyIncrements adds all deltas to column in a single batched UPDATE.
func ApplyIncrements(ctx context.Context, db *gorm.DB, table, column string, incs []Increment) error {
	if len(incs) == 0 {
		return nil
	}
	sql, args := buildIncrementSQL(table, column, incs)
	return db.WithContext(ctx).Exec(sql, args...).Error
}

// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
func buildIncrementSQL(table, column string, incs []Increment) (string, []interface{}) {
	var builder strings.Builder
	args := make([]interface{}, 0, len(incs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id")
	for _, p := range incs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.ID, p.Inc)
	}
	builder.WriteString(" ELSE 0 END WHERE id IN (")
	for i, p := range incs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.ID)
	}
	builder.WriteString(")")
	return builder.String(), args
}
