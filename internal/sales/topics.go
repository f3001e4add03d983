package sales

const (
	TopicSaleCompleted = "pos.sale.completed"
	TopicSaleAnnulled  = "pos.sale.annulled"
	TopicStockAdjusted = "pos.stock.adjusted"
)

// Topics that mean stock moved; the inventory worker subscribes to all of them.
var StockTopics = []string{TopicSaleCompleted, TopicSaleAnnulled, TopicStockAdjusted}

// Partition key = sale_id (or item_id for adjustments), so events of one
// aggregate stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }
