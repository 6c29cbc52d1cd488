package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/infra/redis"
)

var _ redis.RedisClient = (*memRedis)(nil)

// memRedis is an in-memory stand-in for the redis command surface the
// queue uses. BRPop polls under the lock so worker loops behave like the
// real blocking pop.
type memRedis struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	lists  map[string][]string
	sets   map[string]map[string]bool
}

func newMemRedis() *memRedis {
	return &memRedis{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]bool),
	}
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }
func (m *memRedis) Close() error                   { return nil }

func (m *memRedis) HSet(ctx context.Context, key string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return nil
}

func (m *memRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memRedis) LPush(ctx context.Context, key string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{fmt.Sprint(v)}, m.lists[key]...)
	}
	return nil
}

func (m *memRedis) BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		for _, key := range keys {
			if l := m.lists[key]; len(l) > 0 {
				v := l[len(l)-1]
				m.lists[key] = l[:len(l)-1]
				m.mu.Unlock()
				return []string{key, v}, nil
			}
		}
		m.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("brpop timeout")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (m *memRedis) SAdd(ctx context.Context, key string, members ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]bool)
		m.sets[key] = s
	}
	for _, mem := range members {
		s[fmt.Sprint(mem)] = true
	}
	return nil
}

func (m *memRedis) SRem(ctx context.Context, key string, members ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range members {
		delete(m.sets[key], fmt.Sprint(mem))
	}
	return nil
}

func (m *memRedis) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	return out, nil
}

func (m *memRedis) SCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.lists, k)
		delete(m.sets, k)
	}
	return nil
}

// stubProcessor counts calls and returns a fixed outcome per call.
type stubProcessor struct {
	mu     sync.Mutex
	calls  int
	record *model.DocumentRecord
	err    error
	// failFirst makes only the first N attempts fail, then succeed.
	failFirst int
}

func (p *stubProcessor) outcome() (*model.DocumentRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failFirst > 0 && p.calls <= p.failFirst {
		return nil, fmt.Errorf("transient failure %d", p.calls)
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.record, nil
}

func (p *stubProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProcessor) ProcessFile(ctx context.Context, filePath string, opts model.ProcessOptions) (*model.DocumentRecord, error) {
	return p.outcome()
}

func (p *stubProcessor) ProcessBuffer(ctx context.Context, buf []byte, filename string, opts model.ProcessOptions) (*model.DocumentRecord, error) {
	return p.outcome()
}
