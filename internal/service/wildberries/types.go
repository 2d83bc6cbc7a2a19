package wildberries

type sale struct {
	SaleID          string  `json:"saleID"`
	SupplierArticle string  `json:"supplierArticle"`
	NmID            int64   `json:"nmId"`
	ForPay          float64 `json:"forPay"`
	PriceWithDisc   float64 `json:"priceWithDisc"`
}

type order struct {
	SupplierArticle string `json:"supplierArticle"`
	NmID            int64  `json:"nmId"`
	IsCancel        bool   `json:"isCancel"`
}

type advUpdate struct {
	UpdNum   int64   `json:"updNum"`
	UpdSum   float64 `json:"updSum"`
	AdvertID int64   `json:"advertId"`
}

type stockRow struct {
	SupplierArticle string  `json:"supplierArticle"`
	NmID            int64   `json:"nmId"`
	Subject         string  `json:"subject"`
	WarehouseName   string  `json:"warehouseName"`
	Quantity        float64 `json:"quantity"`
}
