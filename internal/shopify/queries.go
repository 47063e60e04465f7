package shopify

// WebhookSubscriptionsQuery lists the app's existing webhook subscriptions
const WebhookSubscriptionsQuery = `
query webhookSubscriptions($first: Int!) {
  webhookSubscriptions(first: $first) {
    edges {
      node {
        id
        topic
        endpoint {
          __typename
          ... on WebhookHttpEndpoint {
            callbackUrl
          }
        }
      }
    }
  }
}
`

// WebhookTopic pairs a GraphQL subscription topic with the webhook path it posts to
type WebhookTopic struct {
	Topic string // e.g. ORDERS_CREATE
	Path  string // e.g. /webhooks/orders/create
}

// AppWebhookTopics are registered through the API after install. The GDPR
// compliance topics are declared in the app configuration instead; Shopify does
// not accept them through webhookSubscriptionCreate.
var AppWebhookTopics = []WebhookTopic{
	{Topic: "ORDERS_CREATE", Path: "/webhooks/orders/create"},
	{Topic: "ORDERS_PAID", Path: "/webhooks/orders/paid"},
	{Topic: "ORDERS_UPDATED", Path: "/webhooks/orders/updated"},
	{Topic: "APP_UNINSTALLED", Path: "/webhooks/app/uninstalled"},
	{Topic: "APP_SCOPES_UPDATE", Path: "/webhooks/app/scopes_update"},
}
