package crawler

// Field names a ProductRecord column.
type Field string

// Record fields, named after their JSON keys.
const (
	FieldProductID      Field = "productId"
	FieldProductURL     Field = "productUrl"
	FieldImageURL       Field = "imageUrl"
	FieldName           Field = "name"
	FieldBrand          Field = "brand"
	FieldStyle          Field = "style"
	FieldABV            Field = "abv"
	FieldDescription    Field = "description"
	FieldRating         Field = "rating"
	FieldReview         Field = "review"
	FieldBundle         Field = "bundle"
	FieldStock          Field = "stock"
	FieldNonMemberPrice Field = "nonMemberPrice"
	FieldPromoPrice     Field = "promoPrice"
	FieldDiscountPrice  Field = "discountPrice"
	FieldMemberPrice    Field = "memberPrice"
	FieldSize           Field = "size"
	FieldType           Field = "type"
	FieldCountry        Field = "country"
	FieldRegion         Field = "region"
	FieldBarcode        Field = "barcode"
)

// AllFields lists every record field in export order followed by the
// specification extras.
var AllFields = []Field{
	FieldProductID, FieldProductURL, FieldImageURL, FieldName, FieldBrand, FieldStyle,
	FieldABV, FieldDescription, FieldRating, FieldReview, FieldBundle, FieldStock,
	FieldNonMemberPrice, FieldPromoPrice, FieldDiscountPrice, FieldMemberPrice,
	FieldSize, FieldType, FieldCountry, FieldRegion, FieldBarcode,
}

func (r *ProductRecord) ptr(f Field) *string {
	switch f {
	case FieldProductID:
		return &r.ProductID
	case FieldProductURL:
		return &r.ProductURL
	case FieldImageURL:
		return &r.ImageURL
	case FieldName:
		return &r.Name
	case FieldBrand:
		return &r.Brand
	case FieldStyle:
		return &r.Style
	case FieldABV:
		return &r.ABV
	case FieldDescription:
		return &r.Description
	case FieldRating:
		return &r.Rating
	case FieldReview:
		return &r.Review
	case FieldBundle:
		return &r.Bundle
	case FieldStock:
		return &r.Stock
	case FieldNonMemberPrice:
		return &r.NonMemberPrice
	case FieldPromoPrice:
		return &r.PromoPrice
	case FieldDiscountPrice:
		return &r.DiscountPrice
	case FieldMemberPrice:
		return &r.MemberPrice
	case FieldSize:
		return &r.Size
	case FieldType:
		return &r.Type
	case FieldCountry:
		return &r.Country
	case FieldRegion:
		return &r.Region
	case FieldBarcode:
		return &r.Barcode
	default:
		return nil
	}
}

// Get returns the value of f, or Unavailable for unknown fields.
func (r ProductRecord) Get(f Field) string {
	p := r.ptr(f)
	if p == nil {
		return Unavailable
	}
	return *p
}

// Set assigns f; unknown fields are ignored.
func (r *ProductRecord) Set(f Field, value string) {
	if p := r.ptr(f); p != nil {
		*p = value
	}
}

// Resolved reports whether f holds a value other than Unavailable.
func (r ProductRecord) Resolved(f Field) bool {
	v := r.Get(f)
	return v != "" && v != Unavailable
}
