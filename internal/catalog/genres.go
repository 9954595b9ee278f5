package catalog

// Genres returns the distinct non-empty genres of books in first-seen order.
func Genres(books []Book) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range books {
		if b.Genre == "" || seen[b.Genre] {
			continue
		}
		seen[b.Genre] = true
		out = append(out, b.Genre)
	}
	return out
}

// FilterByGenre keeps books whose genre is exactly genre. An empty genre
// keeps everything.
func FilterByGenre(books []Book, genre string) []Book {
	if genre == "" {
		return books
	}
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if b.Genre == genre {
			out = append(out, b)
		}
	}
	return out
}
