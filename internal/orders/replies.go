package orders

import (
	"fmt"
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
)

// Quick reply labels offered alongside order replies.
const (
	QuickReplyYes      = "YES"
	QuickReplyNo       = "NO"
	QuickReplyPrices   = "PRICES"
	QuickReplyStock    = "STOCK"
	QuickReplyShipping = "SHIPPING"
)

const maxListedProducts = 5

// Reply is the customer-facing text plus optional quick reply buttons.
type Reply struct {
	Text         string   `json:"text"`
	QuickReplies []string `json:"quickReplies,omitempty"`
}

// HandoffReply is sent when the order flow cannot continue safely.
func HandoffReply() Reply {
	return Reply{Text: "I'd love to help you with your order! Let me connect you with our team to ensure everything goes smoothly."}
}

// ReconfirmReply is sent when a confirmed order could not be written.
func ReconfirmReply() Reply {
	return Reply{
		Text:         "Sorry, I couldn't place your order just yet. 🙏 Please reply \"Yes\" again to confirm.",
		QuickReplies: []string{QuickReplyYes, QuickReplyNo},
	}
}

func productSelectionReply(biz *catalog.BusinessConfig) Reply {
	var b strings.Builder
	b.WriteString("Which product would you like to order? 😊")
	products := biz.Catalog().Products()
	if len(products) > 0 {
		b.WriteString("\n\nHere's what we have:\n")
		for i, p := range products {
			if i == maxListedProducts {
				break
			}
			fmt.Fprintf(&b, "• %s - %s\n", p.Name, catalog.FormatPeso(p.Price))
		}
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func contactRequestReply(s *Session) Reply {
	return Reply{Text: fmt.Sprintf("Great choice with %s! 🎉\n\n"+
		"To process your order, I'll need a few details:\n\n"+
		"📝 **Your name**\n📞 **Phone number**\n📍 **Delivery address** (if needed)\n\n"+
		"You can share them all at once or one by one - whatever's easier for you! 😊",
		strings.Join(s.ProductNames(), ", "))}
}

// missingFields lists what CollectingInfo still needs before confirmation.
func missingFields(s *Session) []string {
	var missing []string
	if s.CustomerInfo.Name == "" {
		missing = append(missing, "your name")
	}
	if s.CustomerInfo.Phone == "" && s.CustomerInfo.Email == "" {
		missing = append(missing, "phone number or email")
	}
	return missing
}

func missingInfoReply(missing []string) Reply {
	return Reply{Text: fmt.Sprintf("Almost there! I just need %s to complete your order. 😊", strings.Join(missing, " and "))}
}

func confirmationReply(s *Session) Reply {
	var b strings.Builder
	b.WriteString("📋 **Order Confirmation**\n\n")
	fmt.Fprintf(&b, "**Customer:** %s\n", firstNonEmpty(s.CustomerInfo.Name, "Customer"))
	fmt.Fprintf(&b, "**Contact:** %s\n\n", firstNonEmpty(s.CustomerInfo.Phone, s.CustomerInfo.Email, "Provided"))
	b.WriteString("**Items:**\n")
	for _, li := range s.Products {
		fmt.Fprintf(&b, "• %s - %s x %d\n", li.Name, catalog.FormatPeso(li.Price), li.Quantity)
	}
	fmt.Fprintf(&b, "\n**Total: %s**\n\n", catalog.FormatPeso(s.Total()))
	if s.OrderDetails.Address != "" {
		fmt.Fprintf(&b, "**Delivery Address:** %s\n\n", s.OrderDetails.Address)
	}
	b.WriteString("Is this order correct? Reply \"Yes\" to confirm or \"No\" to cancel. 😊")
	return Reply{Text: b.String(), QuickReplies: []string{QuickReplyYes, QuickReplyNo}}
}

func clarificationReply(s *Session) Reply {
	return Reply{
		Text: fmt.Sprintf("Just to make sure: shall I place your order for %s (total %s)? Reply \"Yes\" to confirm or \"No\" to cancel. 😊",
			strings.Join(s.ProductNames(), ", "), catalog.FormatPeso(s.Total())),
		QuickReplies: []string{QuickReplyYes, QuickReplyNo},
	}
}

// SuccessReply is the confirmation sent once an order is written.
func SuccessReply(o *Order, biz *catalog.BusinessConfig) Reply {
	var b strings.Builder
	b.WriteString("🎉 **Order Confirmed!**\n\n")
	fmt.Fprintf(&b, "Order #%s\n\n", o.OrderNumber)
	fmt.Fprintf(&b, "Thank you %s! Your order has been received and will be processed shortly.\n\n", firstNonEmpty(o.CustomerName, "for your order"))
	if contact := firstNonEmpty(o.Phone, o.Email); contact != "" {
		fmt.Fprintf(&b, "📞 We'll contact you at %s for any updates.\n\n", contact)
	}
	if hours := biz.Info.BusinessHours; hours != "" {
		fmt.Fprintf(&b, "📅 **Business Hours:** %s\n", hours)
	}
	if phone := biz.Info.Phone; phone != "" {
		fmt.Fprintf(&b, "☎️ **Questions?** Call %s\n", phone)
	}
	b.WriteString("\nWe appreciate your business! 🙏")
	return Reply{Text: b.String()}
}

func cancellationReply() Reply {
	return Reply{Text: "No worries at all! 😊 Your order has been cancelled.\n\n" +
		"Feel free to browse our products anytime or ask if you need help with anything else!\n\n" +
		"We're here whenever you're ready! 🛍️"}
}

func nurtureReply(p catalog.Product) Reply {
	stock := "Checking availability"
	if p.Stock > 0 {
		stock = "Available"
	}
	return Reply{Text: fmt.Sprintf("I'd be happy to help you with %s! 😊\n\n"+
		"💰 **Price:** %s\n📦 **Stock:** %s\n\n"+
		"Would you like to:\n• Learn more about this product\n• Check shipping options\n• Place an order\n• See similar products\n\n"+
		"Just let me know how I can help! 🛍️",
		p.Name, catalog.FormatPeso(p.Price), stock)}
}

func browsingReply() Reply {
	return Reply{
		Text:         "I'd love to help you find the perfect product! What are you looking for today? 😊",
		QuickReplies: []string{QuickReplyPrices, QuickReplyStock, QuickReplyShipping},
	}
}
