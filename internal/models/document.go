package models

// SearchResult is one hit of a document search in the backend's index.
type SearchResult struct {
	Text   string      `json:"text"`
	Source ChunkSource `json:"source"`
}

// DocumentPage is the extracted text of one page of a source document.
type DocumentPage struct {
	URL       string
	Page      int
	PageCount int
	Text      string
}
