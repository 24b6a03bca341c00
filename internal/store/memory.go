package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Memory is one durable fact the robot remembers about the child.
type Memory struct {
	ID        string
	Fact      string
	CreatedAt time.Time
}

// MemoryRepository provides CRUD operations for memories.
type MemoryRepository struct {
	db *sql.DB
}

// Memories returns the memory repository for this store.
func (s *Store) Memories() *MemoryRepository {
	return &MemoryRepository{db: s.db}
}

// Add stores a new memory and returns it with its generated id.
func (r *MemoryRepository) Add(fact string) (*Memory, error) {
	m := &Memory{
		ID:        uuid.NewString(),
		Fact:      fact,
		CreatedAt: time.Now(),
	}

	_, err := r.db.Exec(
		`INSERT INTO memories (id, fact, created_at) VALUES (?, ?, ?)`,
		m.ID, m.Fact, m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// List returns all memories, oldest first.
func (r *MemoryRepository) List() ([]*Memory, error) {
	rows, err := r.db.Query(
		`SELECT id, fact, created_at FROM memories ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		m := &Memory{}
		if err := rows.Scan(&m.ID, &m.Fact, &m.CreatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}

	return memories, rows.Err()
}

// Delete removes a memory by id. Returns ErrNotFound if it does not exist.
func (r *MemoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Facts returns just the fact strings, oldest first, for prompt building.
func (r *MemoryRepository) Facts() ([]string, error) {
	memories, err := r.List()
	if err != nil {
		return nil, err
	}

	facts := make([]string, len(memories))
	for i, m := range memories {
		facts[i] = m.Fact
	}
	return facts, nil
}
