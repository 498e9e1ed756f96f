package steps

import (
	"fmt"
	"math/rand/v2"

	"github.com/bryanwax12/newbotcursor/internal/validate"
)

// Step ids of the shipping order chain.
const (
	SenderName   ID = "sender_name"
	SenderStreet ID = "sender_street"
	SenderAddr2  ID = "sender_addr2"
	SenderCity   ID = "sender_city"
	SenderState  ID = "sender_state"
	SenderZIP    ID = "sender_zip"
	SenderPhone  ID = "sender_phone"

	RecipientName   ID = "recipient_name"
	RecipientStreet ID = "recipient_street"
	RecipientAddr2  ID = "recipient_addr2"
	RecipientCity   ID = "recipient_city"
	RecipientState  ID = "recipient_state"
	RecipientZIP    ID = "recipient_zip"
	RecipientPhone  ID = "recipient_phone"

	ParcelWeight ID = "parcel_weight"
	ParcelLength ID = "parcel_length"
	ParcelWidth  ID = "parcel_width"
	ParcelHeight ID = "parcel_height"
)

// DefaultDimension is stored for skipped parcel dimensions, in inches.
const DefaultDimension = "10"

// EmptyDefault stores the empty marker for skipped free-text lines.
func EmptyDefault(*rand.Rand) string { return "" }

// PlaceholderPhone synthesizes a syntactically valid US number.
func PlaceholderPhone(r *rand.Rand) string {
	return fmt.Sprintf("+1%03d%03d%04d", 200+r.IntN(800), 200+r.IntN(800), 1000+r.IntN(9000))
}

// DimensionDefault stores DefaultDimension.
func DimensionDefault(*rand.Rand) string { return DefaultDimension }

func addressBlock(g Group, who string, name, street, addr2, city, state, zip, phone, after ID) []Definition {
	return []Definition{
		{ID: name, Group: g, Label: "Name", Validate: validate.Name, Next: street,
			Prompt: "Enter the " + who + "'s full name (e.g. John Smith)."},
		{ID: street, Group: g, Label: "Address", Validate: validate.Street, Next: addr2,
			Prompt: "Enter the " + who + "'s street address (e.g. 215 Clayton St)."},
		{ID: addr2, Group: g, Label: "Address line 2", Validate: validate.AddressLine2, Next: city,
			Optional: true, NextOnSkip: city, Default: EmptyDefault,
			Prompt: "Enter address line 2 (apartment, suite, unit) or skip."},
		{ID: city, Group: g, Label: "City", Validate: validate.City, Next: state,
			Prompt: "Enter the " + who + "'s city."},
		{ID: state, Group: g, Label: "State", Validate: validate.State, Next: zip,
			Prompt: "Enter the " + who + "'s two-letter state code (e.g. CA)."},
		{ID: zip, Group: g, Label: "ZIP", Validate: validate.ZIP, Next: phone,
			Prompt: "Enter the " + who + "'s ZIP code (e.g. 94117)."},
		{ID: phone, Group: g, Label: "Phone", Validate: validate.Phone, Next: after,
			Optional: true, NextOnSkip: after, Default: PlaceholderPhone,
			Prompt: "Enter the " + who + "'s phone number or skip."},
	}
}

// Shipping returns the registry of the shipping order wizard.
func Shipping() *Registry {
	defs := addressBlock(GroupSender, "sender",
		SenderName, SenderStreet, SenderAddr2, SenderCity, SenderState, SenderZIP, SenderPhone, RecipientName)
	defs = append(defs, addressBlock(GroupRecipient, "recipient",
		RecipientName, RecipientStreet, RecipientAddr2, RecipientCity, RecipientState, RecipientZIP, RecipientPhone, ParcelWeight)...)
	defs = append(defs,
		Definition{ID: ParcelWeight, Group: GroupParcel, Label: "Weight (lb)", Validate: validate.Weight, Next: ParcelLength,
			Prompt: "Enter the parcel weight in pounds (e.g. 2.5)."},
		Definition{ID: ParcelLength, Group: GroupParcel, Label: "Length (in)", Validate: validate.Dimension, Next: ParcelWidth,
			Optional: true, NextOnSkip: AwaitingConfirmation, Default: DimensionDefault, SkipFills: []ID{ParcelWidth, ParcelHeight},
			Prompt: "Enter the parcel length in inches, or skip to use 10x10x10."},
		Definition{ID: ParcelWidth, Group: GroupParcel, Label: "Width (in)", Validate: validate.Dimension, Next: ParcelHeight,
			Optional: true, NextOnSkip: AwaitingConfirmation, Default: DimensionDefault, SkipFills: []ID{ParcelHeight},
			Prompt: "Enter the parcel width in inches, or skip to use 10."},
		Definition{ID: ParcelHeight, Group: GroupParcel, Label: "Height (in)", Validate: validate.Dimension, Next: AwaitingConfirmation,
			Optional: true, NextOnSkip: AwaitingConfirmation, Default: DimensionDefault,
			Prompt: "Enter the parcel height in inches, or skip to use 10."},
	)
	return MustNew(defs...)
}
