package domain

// Destination identifies where a resource lives in the object store.
type Destination struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (d Destination) String() string {
	return d.Bucket + "/" + d.Key
}

// Stat is the store's answer for an existing object.
type Stat struct {
	Checksum     string
	Size         int64
	MimeType     string
	LastModified int64 // unix seconds
}
