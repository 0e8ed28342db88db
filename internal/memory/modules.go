package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Module is metadata about a reusable code module the recommender can suggest.
type Module struct {
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	Tags                  []string   `json:"tags"`
	Example               string     `json:"example,omitempty"`
	// Source is the manifest file the module was loaded from.
	Source                string     `json:"source,omitempty"`
	Embedding             []float32  `json:"-"`
	EmbeddingMetadataHash string     `json:"-"`
	UsageCount            int        `json:"usage_count"`
	LastUsedAt            *time.Time `json:"last_used_at,omitempty"`
}

// MetadataHash is the content hash of the fields that feed a module's embedding.
func (m Module) MetadataHash() string {
	return ModuleMetadataHash(m.Description, m.Tags, m.Example)
}

// EmbeddingText is the text the embedding engine sees for a module.
func (m Module) EmbeddingText() string {
	parts := []string{strings.ReplaceAll(m.Name, "_", " "), m.Description}
	if len(m.Tags) > 0 {
		parts = append(parts, strings.Join(m.Tags, " "))
	}
	if m.Example != "" {
		parts = append(parts, m.Example)
	}
	return strings.Join(parts, "\n")
}

// ModuleMetadataHash hashes {description, tags, example}.
func ModuleMetadataHash(description string, tags []string, example string) string {
	h := sha256.New()
	h.Write([]byte(description))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(tags, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(example))
	return hex.EncodeToString(h.Sum(nil))
}

const moduleCols = `name, description, tags, example, source, embedding, embedding_metadata_hash, usage_count, last_used_at`

// UpsertModuleMetadata inserts or updates a module's descriptive fields,
// preserving usage statistics and the cached embedding.
func (s *Store) UpsertModuleMetadata(m Module) error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return invalid("module name", "must not be empty")
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return invalid("tags", err.Error())
	}
	_, err = s.execHook("upsert module",
		`INSERT INTO modules (name, description, tags, example, source, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   description = excluded.description,
		   tags = excluded.tags,
		   example = excluded.example,
		   source = excluded.source,
		   updated_at = excluded.updated_at`,
		name, m.Description, string(raw), m.Example, m.Source, s.stamp(),
	)
	return err
}

// GetModule retrieves a module by name.
func (s *Store) GetModule(name string) (*Module, error) {
	ms, err := s.queryModules("get module", `SELECT `+moduleCols+` FROM modules WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, notFound("module", name)
	}
	return &ms[0], nil
}

// ListModules returns all modules ordered by name.
func (s *Store) ListModules() ([]Module, error) {
	return s.queryModules("list modules", `SELECT `+moduleCols+` FROM modules ORDER BY name ASC`)
}

// DeleteModule removes a module and its usage statistics.
func (s *Store) DeleteModule(name string) error {
	res, err := s.execHook("delete module", `DELETE FROM modules WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("module", name)
	}
	return nil
}

// NeedsEmbeddingRefresh reports whether a module's cached embedding was
// computed from metadata other than hash (or was never computed).
func (s *Store) NeedsEmbeddingRefresh(name, hash string) (bool, error) {
	m, err := s.GetModule(name)
	if err != nil {
		return false, err
	}
	return !m.hasFreshEmbedding(hash), nil
}

func (m Module) hasFreshEmbedding(hash string) bool {
	return len(m.Embedding) > 0 && m.EmbeddingMetadataHash == hash
}

// EmbeddingKey ties a cached module vector to both its metadata and the model
// that produced it, so switching models invalidates the cache.
func (m Module) EmbeddingKey(model string) string {
	return model + "|" + m.MetadataHash()
}

// HasFreshEmbedding reports whether the cached embedding was computed by model
// from the current metadata.
func (m Module) HasFreshEmbedding(model string) bool {
	return m.hasFreshEmbedding(m.EmbeddingKey(model))
}

// SetModuleEmbedding caches a module's vector along with the metadata hash it came from.
func (s *Store) SetModuleEmbedding(name string, vec []float32, hash string) error {
	res, err := s.execHook("set module embedding",
		`UPDATE modules SET embedding = ?, embedding_metadata_hash = ? WHERE name = ?`,
		EncodeVector(vec), nullableString(hash), name,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("module", name)
	}
	return nil
}

// RecordModuleUse bumps a module's usage_count and last_used_at.
func (s *Store) RecordModuleUse(name string) (*Module, error) {
	res, err := s.execHook("record module use",
		`UPDATE modules SET usage_count = usage_count + 1, last_used_at = ? WHERE name = ?`,
		s.stamp(), strings.TrimSpace(name),
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("module", name)
	}
	return s.GetModule(name)
}

func (s *Store) queryModules(op, query string, args ...any) ([]Module, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []Module
	for rows.Next() {
		var (
			m        Module
			tags     string
			blob     []byte
			hash     *string
			lastUsed *string
		)
		if err := rows.Scan(&m.Name, &m.Description, &tags, &m.Example, &m.Source, &blob, &hash, &m.UsageCount, &lastUsed); err != nil {
			return nil, storageErr(op, err)
		}
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			m.Tags = nil
		}
		if vec, err := DecodeVector(blob); err == nil {
			m.Embedding = vec
		}
		m.EmbeddingMetadataHash = derefString(hash)
		m.LastUsedAt = parseTimePtr(lastUsed)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}
