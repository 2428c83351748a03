// Package catalog defines the wire-level model of the catalogue search API:
// the result categories a search can target, the per-category record
// containers the search endpoint returns, and the error envelope the API
// sends alongside non-2xx status codes.
package catalog

// SearchPath is the path of the paginated search endpoint. All other paths
// resolve individual resources (single records, contributors, titles).
const SearchPath = "/result"

// StatusPending marks a record that has been announced but not yet fully
// ingested. Responses containing such records change quickly and must not
// be cached for long.
const StatusPending = "pending"

// Category identifies one searchable zone of the catalogue. Every search
// targets one or more categories and the response groups records by them.
type Category string

const (
	CategoryBook      Category = "book"
	CategoryDiary     Category = "diary"
	CategoryImage     Category = "image"
	CategoryList      Category = "list"
	CategoryMagazine  Category = "magazine"
	CategoryMusic     Category = "music"
	CategoryNewspaper Category = "newspaper"
	CategoryPeople    Category = "people"
)

// containerFields maps each category to the JSON field inside its "records"
// object that holds the actual record array. The API does not use a uniform
// field name: most categories return works, newspapers return articles, and
// the people and list categories use their own containers.
var containerFields = map[Category]string{
	CategoryBook:      "work",
	CategoryDiary:     "work",
	CategoryImage:     "work",
	CategoryList:      "list",
	CategoryMagazine:  "work",
	CategoryMusic:     "work",
	CategoryNewspaper: "article",
	CategoryPeople:    "people",
}

// KnownCategories returns all categories the API accepts, in a stable order.
func KnownCategories() []Category {
	return []Category{
		CategoryBook,
		CategoryDiary,
		CategoryImage,
		CategoryList,
		CategoryMagazine,
		CategoryMusic,
		CategoryNewspaper,
		CategoryPeople,
	}
}

// Valid reports whether c is a category the API accepts.
func (c Category) Valid() bool {
	_, ok := containerFields[c]
	return ok
}

// String returns the wire form of the category.
func (c Category) String() string {
	return string(c)
}

// ContainerField returns the name of the JSON field that holds the record
// array for the given category. Unknown categories fall back to "work",
// which is what the majority of categories use.
func ContainerField(c Category) string {
	if f, ok := containerFields[c]; ok {
		return f
	}
	return "work"
}
