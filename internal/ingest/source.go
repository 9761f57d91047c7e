package ingest

// Source is what one Ingest call consumes: exactly one of SingleDocument, Directory or
// DocumentList.
type Source interface {
	isSource()
}

// SingleDocument is an in-memory document, e.g. an upload. Name must carry the extension.
type SingleDocument struct {
	Name    string
	Content []byte
}

// Directory ingests every supported file directly inside Path (not recursive).
type Directory struct {
	Path string
}

// DocumentList ingests the given files. Files with unsupported extensions are skipped.
type DocumentList struct {
	Paths []string
}

func (SingleDocument) isSource() {}
func (Directory) isSource()      {}
func (DocumentList) isSource()   {}
