package entity

// Document is display metadata resolved from the external document
// catalog. The sharing engine stores only document ids; everything else
// comes from the catalog at response time.
type Document struct {
	Id       string `json:"id"`
	Title    string `json:"title"`
	FileName string `json:"file_name,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}
