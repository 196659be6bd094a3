package domain

import "fmt"

// MaxAddresses is how many shipping addresses one account may keep.
const MaxAddresses = 2

var (
	ErrAddressLimit    = fmt.Errorf("%w: address book full", ErrValidation)
	ErrAddressNotFound = fmt.Errorf("%w: address", ErrNotFound)
	ErrEmailInUse      = fmt.Errorf("%w: email already in use", ErrValidation)
)

// Address is one entry of a user's address book. At most one entry is the
// default.
type Address struct {
	ID           string `json:"id"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Phone        string `json:"phone"`
	IsDefault    bool   `json:"is_default"`
}

// AddressPatch is a partial address update. Empty strings and nil pointers
// leave the stored value alone.
type AddressPatch struct {
	AddressLine1 string
	AddressLine2 *string
	City         string
	State        string
	Pincode      string
	Phone        string
	IsDefault    *bool
}

// AddAddress returns a new address book with a appended. When a is the
// default every other entry loses the flag.
func AddAddress(book []Address, a Address) ([]Address, error) {
	if len(book) >= MaxAddresses {
		return nil, ErrAddressLimit
	}
	out := make([]Address, 0, len(book)+1)
	for _, e := range book {
		if a.IsDefault {
			e.IsDefault = false
		}
		out = append(out, e)
	}
	return append(out, a), nil
}

// UpdateAddress returns a new address book with p applied to the entry id.
func UpdateAddress(book []Address, id string, p AddressPatch) ([]Address, error) {
	idx := indexOf(book, id)
	if idx < 0 {
		return nil, ErrAddressNotFound
	}
	out := append([]Address(nil), book...)
	if p.IsDefault != nil && *p.IsDefault {
		for i := range out {
			out[i].IsDefault = false
		}
	}

	a := &out[idx]
	if p.AddressLine1 != "" {
		a.AddressLine1 = p.AddressLine1
	}
	if p.AddressLine2 != nil {
		a.AddressLine2 = *p.AddressLine2
	}
	if p.City != "" {
		a.City = p.City
	}
	if p.State != "" {
		a.State = p.State
	}
	if p.Pincode != "" {
		a.Pincode = p.Pincode
	}
	if p.Phone != "" {
		a.Phone = p.Phone
	}
	if p.IsDefault != nil {
		a.IsDefault = *p.IsDefault
	}
	return out, nil
}

// RemoveAddress returns a new address book without the entry id.
func RemoveAddress(book []Address, id string) ([]Address, error) {
	idx := indexOf(book, id)
	if idx < 0 {
		return nil, ErrAddressNotFound
	}
	out := make([]Address, 0, len(book)-1)
	out = append(out, book[:idx]...)
	return append(out, book[idx+1:]...), nil
}

func indexOf(book []Address, id string) int {
	for i := range book {
		if book[i].ID == id {
			return i
		}
	}
	return -1
}
