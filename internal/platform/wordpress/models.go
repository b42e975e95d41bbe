package wordpress

// wpUser is the /users/me response subset the adapter needs.
type wpUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

// wpPost is the posts resource response subset.
type wpPost struct {
	ID      int64      `json:"id"`
	Link    string     `json:"link"`
	Status  string     `json:"status"`
	DateGMT string     `json:"date_gmt"`
	Title   wpRendered `json:"title"`
}

// wpPostRequest is the create/update payload.
type wpPostRequest struct {
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
	Excerpt string  `json:"excerpt,omitempty"`
	Status  string  `json:"status,omitempty"`
	Date    string  `json:"date_gmt,omitempty"`
	Tags    []int64 `json:"tags,omitempty"`
}

type wpTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type wpTagRequest struct {
	Name string `json:"name"`
}
