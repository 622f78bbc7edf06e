package domain

// Фиксированный набор размерных вариантов товара.
const (
	SizeS  = "S"
	SizeM  = "M"
	SizeL  = "L"
	SizeXL = "XL"
)

var sizeVariants = map[string]bool{
	SizeS:  true,
	SizeM:  true,
	SizeL:  true,
	SizeXL: true,
}

// ValidSize проверяет, что размер входит в поддерживаемый набор вариантов.
func ValidSize(size string) bool {
	return sizeVariants[size]
}

// SizeVariants возвращает список поддерживаемых размеров.
func SizeVariants() []string {
	return []string{SizeS, SizeM, SizeL, SizeXL}
}

// ProductStock хранит остаток одного размерного варианта товара.
// Qty всегда >= 0: мутации идут только через условные операции
// InventoryRepository, read-modify-write запрещён.
type ProductStock struct {
	ProductID string
	Size      string
	Qty       int32
}
