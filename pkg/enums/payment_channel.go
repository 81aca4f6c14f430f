package enums

import "fmt"

// PaymentChannel identifies the UPI app the payer reports having used.
type PaymentChannel string

const (
	PaymentChannelGPay      PaymentChannel = "gpay"
	PaymentChannelPhonePe   PaymentChannel = "phonepe"
	PaymentChannelPaytm     PaymentChannel = "paytm"
	PaymentChannelAmazonPay PaymentChannel = "amazonpay"
	PaymentChannelBHIM      PaymentChannel = "bhim"
	PaymentChannelOther     PaymentChannel = "other"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelGPay,
	PaymentChannelPhonePe,
	PaymentChannelPaytm,
	PaymentChannelAmazonPay,
	PaymentChannelBHIM,
	PaymentChannelOther,
}

// String implements fmt.Stringer.
func (p PaymentChannel) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentChannel.
func (p PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentChannel converts raw input into a PaymentChannel.
func ParsePaymentChannel(value string) (PaymentChannel, error) {
	for _, candidate := range validPaymentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment channel %q", value)
}
