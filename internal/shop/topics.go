package shop

const (
	TopicOrderCreated = "shop.order.created"
	TopicOrderStatus  = "shop.order.status"
	TopicCartExpired  = "shop.cart.expired"
)

// Partition key = order_id (atau user_id utk cart), supaya event 1 entitas urut.
func PartitionKey(id string) []byte { return []byte(id) }
