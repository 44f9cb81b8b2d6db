package store

import (
	"encoding/binary"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/rotisserie/eris"
)

// EmbeddingInput is the oracle input for one email lacking an embedding.
type EmbeddingInput struct {
	EmailID  string
	Subject  string
	BodyText string
}

// EmbeddingRow is one stored vector.
type EmbeddingRow struct {
	EmailID string
	Vector  []float32
}

// EmailsMissingEmbedding selects every email lacking an embedding row,
// using a left anti-join on email_id. Ordered by id so batches are stable
// across resumed runs.
func (s *Store) EmailsMissingEmbedding() ([]EmbeddingInput, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.subject, e.body_text
		FROM emails e
		LEFT JOIN embeddings emb ON e.id = emb.email_id
		WHERE emb.email_id IS NULL
		ORDER BY e.id`)
	if err != nil {
		return nil, eris.Wrap(err, "select emails missing embedding")
	}
	defer rows.Close()

	var inputs []EmbeddingInput
	for rows.Next() {
		var in EmbeddingInput
		if err := rows.Scan(&in.EmailID, &in.Subject, &in.BodyText); err != nil {
			return nil, eris.Wrap(err, "scan embedding input")
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// InsertEmbedding stores the vector for an email. Vectors are written in
// sqlite-vec's compact float32 little-endian format. A second insert for
// the same email returns ErrDuplicate (re-embedding requires deleting
// first).
func (s *Store) InsertEmbedding(emailID string, vector []float32) error {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return eris.Wrap(err, "serialize vector")
	}
	_, err = s.db.Exec(`INSERT INTO embeddings (email_id, vector) VALUES (?, ?)`, emailID, blob)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return eris.Wrap(err, "insert embedding")
	}
	return nil
}

// DeleteEmbedding removes the stored vector for an email, making it
// eligible for re-embedding.
func (s *Store) DeleteEmbedding(emailID string) error {
	if _, err := s.db.Exec(`DELETE FROM embeddings WHERE email_id = ?`, emailID); err != nil {
		return eris.Wrap(err, "delete embedding")
	}
	return nil
}

// ListEmbeddings returns every stored vector ordered by email_id. The
// order is the stable tie-break for similarity ranking.
func (s *Store) ListEmbeddings() ([]EmbeddingRow, error) {
	rows, err := s.db.Query(`SELECT email_id, vector FROM embeddings ORDER BY email_id`)
	if err != nil {
		return nil, eris.Wrap(err, "list embeddings")
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, eris.Wrap(err, "scan embedding")
		}
		vec, err := DeserializeVector(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "decode vector for %s", id)
		}
		out = append(out, EmbeddingRow{EmailID: id, Vector: vec})
	}
	return out, rows.Err()
}

// DeserializeVector decodes a sqlite-vec float32 little-endian blob.
func DeserializeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, eris.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
