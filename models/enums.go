package models

// IngredientVariant tags what an ingredient line points at. Exactly one of the
// reference columns is valid per variant: ARTICLE -> master_article_id,
// SUBRECIPE -> sub_recipe_id, FIXED -> neither (the gross price IS the cost).
type IngredientVariant string

const (
	IngredientVariantArticle   IngredientVariant = "ARTICLE"
	IngredientVariantSubRecipe IngredientVariant = "SUBRECIPE"
	IngredientVariantFixed     IngredientVariant = "FIXED"
)

// HistoryTrigger drives the temporal upsert behavior of the cost ledgers.
// Import is a fact replay from an invoice; manual is an operator checkpoint.
type HistoryTrigger string

const (
	HistoryTriggerImport HistoryTrigger = "import"
	HistoryTriggerManual HistoryTrigger = "manual"
)

type ImportJobStatus string

const (
	ImportJobStatusPending   ImportJobStatus = "pending"
	ImportJobStatusCompleted ImportJobStatus = "completed"
	ImportJobStatusError     ImportJobStatus = "error"
)

type MergeRequestStatus string

const (
	MergeRequestStatusPending   MergeRequestStatus = "pending"
	MergeRequestStatusAccepted  MergeRequestStatus = "accepted"
	MergeRequestStatusCompleted MergeRequestStatus = "completed"
	MergeRequestStatusRejected  MergeRequestStatus = "rejected"
)

// SmsType filters which article categories may raise price alerts.
type SmsType string

const (
	SmsTypeFood             SmsType = "FOOD"
	SmsTypeFoodAndBeverages SmsType = "FOOD & BEVERAGES"
)

// SmsVariationTrigger is the magnitude threshold for price alerts.
type SmsVariationTrigger string

const (
	SmsVariationTriggerAll SmsVariationTrigger = "ALL"
	SmsVariationTrigger5   SmsVariationTrigger = "5%"
	SmsVariationTrigger10  SmsVariationTrigger = "10%"
)

// SupplierLabel categorizes a supplier (and by extension its articles).
type SupplierLabel string

const (
	SupplierLabelFood     SupplierLabel = "FOOD"
	SupplierLabelBeverage SupplierLabel = "BEVERAGE"
	SupplierLabelOther    SupplierLabel = "OTHER"
)

type LiveScoreType string

const (
	LiveScoreTypePurchase  LiveScoreType = "purchase"
	LiveScoreTypeRecipe    LiveScoreType = "recipe"
	LiveScoreTypeFinancial LiveScoreType = "financial"
	LiveScoreTypeGlobal    LiveScoreType = "global"
)
