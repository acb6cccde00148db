package domain

// Option labels returned by the completion service. The pipeline accepts a
// recommendation only when all three are present.
const (
	OptionLabel1 = "Option_1"
	OptionLabel2 = "Option_2"
	OptionLabel3 = "Option_3"
)

// OptionLabels lists the three labels in display order.
var OptionLabels = []string{OptionLabel1, OptionLabel2, OptionLabel3}

// MaxQuestionLength is the upper bound on the user question, matching the
// input limit of the original UI.
const MaxQuestionLength = 500

// Placeholder values substituted for missing catalog metadata.
const (
	PlaceholderImageURL    = "https://via.placeholder.com/150"
	PlaceholderProductName = "Product Name Not Available"
)

// UploadedImage carries the raw bytes and original filename of an uploaded
// garment image. It lives only for the duration of one request.
type UploadedImage struct {
	Data     []byte
	Filename string
}

// RecommendationRequest is the input to the pipeline: one image plus one
// free-text question.
type RecommendationRequest struct {
	Image    UploadedImage
	Question string
}

// RecommendationOptions holds the three clothing suggestions produced by the
// completion service, one short description per labeled option.
type RecommendationOptions struct {
	Option1 string `json:"Option_1"`
	Option2 string `json:"Option_2"`
	Option3 string `json:"Option_3"`
}

// Texts returns the option descriptions in label order.
func (o *RecommendationOptions) Texts() [3]string {
	return [3]string{o.Option1, o.Option2, o.Option3}
}

// Complete reports whether all three options are present and non-empty.
func (o *RecommendationOptions) Complete() bool {
	return o != nil && o.Option1 != "" && o.Option2 != "" && o.Option3 != ""
}

// CatalogMatch is one catalog entry returned by the vector index for an
// option's embedding. Rank order comes from the index; this system does not
// re-score.
type CatalogMatch struct {
	ID          string `json:"id"`
	ImageURL    string `json:"image_url"`
	ProductName string `json:"productDisplayName"`
}

// OptionResult pairs one option's description with its catalog matches.
type OptionResult struct {
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Matches     []CatalogMatch `json:"matches"`
}

// RecommendationResult is the final pipeline output: the three options in
// Option_1..Option_3 order, each with up to topK catalog matches.
type RecommendationResult struct {
	Options []OptionResult `json:"options"`
}
