package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RequestStatus tracks what happened to an extension request.
type RequestStatus string

const (
	// RequestPending means the request is waiting for the build pipeline.
	RequestPending RequestStatus = "pending"
	// RequestBuilt means an extension was generated for the request.
	RequestBuilt RequestStatus = "built"
	// RequestDeclined means the request was turned down.
	RequestDeclined RequestStatus = "declined"
)

// Request is one "can you learn to..." wish captured from chat.
type Request struct {
	ID        string
	Phrase    string
	Status    RequestStatus
	CreatedAt time.Time
}

// RequestRepository provides CRUD operations for extension requests.
type RequestRepository struct {
	db *sql.DB
}

// Requests returns the extension request repository for this store.
func (s *Store) Requests() *RequestRepository {
	return &RequestRepository{db: s.db}
}

// Create records a new pending request and returns it with its generated id.
func (r *RequestRepository) Create(phrase string) (*Request, error) {
	req := &Request{
		ID:        uuid.NewString(),
		Phrase:    phrase,
		Status:    RequestPending,
		CreatedAt: time.Now(),
	}

	_, err := r.db.Exec(
		`INSERT INTO extension_requests (id, phrase, status, created_at) VALUES (?, ?, ?, ?)`,
		req.ID, req.Phrase, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return req, nil
}

// List returns all requests, newest first.
func (r *RequestRepository) List() ([]*Request, error) {
	rows, err := r.db.Query(
		`SELECT id, phrase, status, created_at FROM extension_requests ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req := &Request{}
		var status string
		if err := rows.Scan(&req.ID, &req.Phrase, &status, &req.CreatedAt); err != nil {
			return nil, err
		}
		req.Status = RequestStatus(status)
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// SetStatus updates a request's status. Returns ErrNotFound if the id does
// not exist.
func (r *RequestRepository) SetStatus(id string, status RequestStatus) error {
	result, err := r.db.Exec(
		`UPDATE extension_requests SET status = ? WHERE id = ?`,
		string(status), id,
	)
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

// GetByID retrieves a request by its id.
func (r *RequestRepository) GetByID(id string) (*Request, error) {
	req := &Request{}
	var status string

	err := r.db.QueryRow(
		`SELECT id, phrase, status, created_at FROM extension_requests WHERE id = ?`,
		id,
	).Scan(&req.ID, &req.Phrase, &status, &req.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	req.Status = RequestStatus(status)
	return req, nil
}
