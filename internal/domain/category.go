package domain

// Category groups IT requests for ranking in the intake dialogue.
type Category struct {
	ID           int64
	Name         string
	Type         RequestType
	RequestCount int
}

// Subcategory narrows a category.
type Subcategory struct {
	ID           int64
	CategoryID   int64
	Name         string
	RequestCount int
}
