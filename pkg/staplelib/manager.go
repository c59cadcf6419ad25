package staplelib

// Manager is the shared registry of certificate records. The finder is
// the only component that adds or removes entries; every stage looks
// records up by path.
type Manager struct {
	records VMap[string, *Record]
}

// NewManager creates an empty record registry.
func NewManager() *Manager {
	return &Manager{records: NewVMap[string, *Record]()}
}

// Add registers a record under its path.
func (m *Manager) Add(rec *Record) {
	m.records.Set(rec.Path(), rec)
}

// Get looks up the record for a certificate file path.
func (m *Manager) Get(path string) (*Record, bool) {
	return m.records.Get(path)
}

// Remove drops the record for path, if tracked. The staple file on disk
// is left alone.
func (m *Manager) Remove(path string) {
	m.records.Del(path)
}

// Len returns the number of tracked certificates.
func (m *Manager) Len() int {
	return m.records.Len()
}

// Paths returns the paths of all tracked certificates.
func (m *Manager) Paths() []string {
	keys, _ := m.records.Dump()
	return keys
}

// Records returns all tracked records.
func (m *Manager) Records() []*Record {
	_, vals := m.records.Dump()
	return vals
}
