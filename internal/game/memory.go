package game

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/saltmere/server/internal/world"
)

// MemoryPlayers is the in-memory PlayerStore used when the database is
// disabled and in tests. Documents are stored as JSON so loads return
// independent copies, the same contract the Postgres repo gives.
type MemoryPlayers struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryPlayers() *MemoryPlayers {
	return &MemoryPlayers{docs: make(map[string][]byte)}
}

func (m *MemoryPlayers) Load(_ context.Context, name string) (*world.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, nil
	}
	p := &world.Player{}
	if err := json.Unmarshal(doc, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *MemoryPlayers) Save(_ context.Context, p *world.Player) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[p.Name] = doc
	m.mu.Unlock()
	return nil
}

func (m *MemoryPlayers) SaveBatch(ctx context.Context, players []*world.Player) error {
	for _, p := range players {
		if err := m.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
