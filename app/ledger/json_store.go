package ledger

var _ Store = (*JSONStore)(nil)

// JSONStore keeps the ledger in memory and rewrites the JSON file on every
// Put, so a failed run keeps every entry written before the failure.
type JSONStore struct {
	path   string
	ledger Ledger
}

func OpenJSONStore(path string) (*JSONStore, error) {
	l, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &JSONStore{path: path, ledger: l}, nil
}

func (s *JSONStore) Contains(key string) (bool, error) {
	return s.ledger.Contains(key), nil
}

func (s *JSONStore) Put(key string, entry Entry) error {
	s.ledger.Put(key, entry)
	return Save(s.path, s.ledger)
}

func (s *JSONStore) Flush() error {
	return Save(s.path, s.ledger)
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) Ledger() (Ledger, error) {
	return s.ledger, nil
}
