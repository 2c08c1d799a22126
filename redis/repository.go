package redis

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-redis/redis/v8"
	"github.com/lzap/qctask"
)

// Repository keeps the latest version of every monitor object under
// <prefix>:<detector>:<task>:<name>, the object metadata is stored in a hash next to it.
type Repository struct {
	logger logr.Logger
	client *redis.Client
	prefix string
}

func NewRepository(ctx context.Context, logger logr.Logger, opts Options, prefix string) (*Repository, error) {
	rdb := opts.client()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, qctask.ErrCreateClient.Context(err)
	}
	return &Repository{logger: logger, client: rdb, prefix: prefix}, nil
}

// ObjectKey returns the key the latest version of an object is stored under.
func (r *Repository) ObjectKey(detector, task, name string) string {
	return fmt.Sprintf("%s:%s:%s:%s", r.prefix, detector, task, name)
}

func (r *Repository) Store(ctx context.Context, objs ...*qctask.MonitorObject) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, obj := range objs {
			data, err := json.Marshal(obj)
			if err != nil {
				return err
			}
			key := r.ObjectKey(obj.Detector, obj.TaskName, obj.Name)
			pipe.Set(ctx, key, data, 0)
			pipe.Del(ctx, key+":metadata")
			if len(obj.Metadata) > 0 {
				fields := make(map[string]interface{}, len(obj.Metadata))
				for k, v := range obj.Metadata {
					fields[k] = v
				}
				pipe.HSet(ctx, key+":metadata", fields)
			}
		}
		return nil
	})
	if err != nil {
		return qctask.ErrStore.Context(err)
	}
	r.logger.V(1).Info("stored monitor objects", "count", len(objs))
	return nil
}

// Latest reads back the latest version of an object.
func (r *Repository) Latest(ctx context.Context, detector, task, name string) (*qctask.MonitorObject, error) {
	data, err := r.client.Get(ctx, r.ObjectKey(detector, task, name)).Bytes()
	if err != nil {
		return nil, err
	}
	var obj qctask.MonitorObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, qctask.ErrDecode.Context(err)
	}
	return &obj, nil
}

func (r *Repository) Close() {
	if err := r.client.Close(); err != nil {
		r.logger.Error(err, "unable to close redis client")
	}
}
