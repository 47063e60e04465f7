package shopify

// MetafieldsSetMutation sets metafields on a resource (the Order, for the delifast.* fields)
const MetafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields {
      key
      namespace
      value
    }
    userErrors {
      field
      message
      code
    }
  }
}
`

// TagsAddMutation adds tags to a taggable resource (Order)
const TagsAddMutation = `
mutation tagsAdd($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    node {
      id
    }
    userErrors {
      field
      message
    }
  }
}
`

// WebhookSubscriptionCreateMutation subscribes the app to a webhook topic
const WebhookSubscriptionCreateMutation = `
mutation webhookSubscriptionCreate($topic: WebhookSubscriptionTopic!, $webhookSubscription: WebhookSubscriptionInput!) {
  webhookSubscriptionCreate(topic: $topic, webhookSubscription: $webhookSubscription) {
    webhookSubscription {
      id
      topic
    }
    userErrors {
      field
      message
    }
  }
}
`

// MetafieldNamespace is the namespace of every metafield the app writes
const MetafieldNamespace = "delifast"

// Metafield keys written on orders
const (
	MetafieldShipmentID    = "shipment_id"
	MetafieldStatus        = "status"
	MetafieldIsTemporary   = "is_temporary"
	MetafieldStatusDetails = "status_details"
)

// MetafieldsSetInput is used with metafieldsSet mutation (e.g. to set metafield on Order).
type MetafieldsSetInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// OrderMetafield builds a single_line_text_field delifast.<key> metafield for an order
func OrderMetafield(orderID, key, value string) MetafieldsSetInput {
	return MetafieldsSetInput{
		OwnerID:   OrderGID(orderID),
		Namespace: MetafieldNamespace,
		Key:       key,
		Type:      "single_line_text_field",
		Value:     value,
	}
}

// WebhookSubscriptionInput is the HTTP delivery target of a subscription
type WebhookSubscriptionInput struct {
	CallbackURL string `json:"callbackUrl"`
	Format      string `json:"format"`
}
