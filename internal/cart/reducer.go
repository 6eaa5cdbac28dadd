package cart

import "fmt"

// ActionType names a cart mutation.
type ActionType string

const (
	ActionAddItem        ActionType = "ADD_ITEM"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionRemoveItem     ActionType = "REMOVE_ITEM"
	ActionClear          ActionType = "CLEAR"
	ActionApplyDiscount  ActionType = "APPLY_DISCOUNT"
	ActionRemoveDiscount ActionType = "REMOVE_DISCOUNT"
	ActionSettle         ActionType = "SETTLE"
)

// Action is a single mutation request. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType
	Item     Item
	Key      Key
	Quantity int
	Items    []Item
	Discount *AppliedDiscount
}

func AddItem(item Item) Action {
	return Action{Type: ActionAddItem, Item: item}
}

func UpdateQuantity(productID, variantID string, quantity int) Action {
	return Action{Type: ActionUpdateQuantity, Key: Key{ProductID: productID, VariantID: variantID}, Quantity: quantity}
}

func RemoveItem(productID, variantID string) Action {
	return Action{Type: ActionRemoveItem, Key: Key{ProductID: productID, VariantID: variantID}}
}

func Clear() Action {
	return Action{Type: ActionClear}
}

// Settle removes lines that were paid for. Quantities added to a line after
// payment stay in the cart.
func Settle(paid []Item) Action {
	return Action{Type: ActionSettle, Items: paid}
}

func ApplyDiscount(d AppliedDiscount) Action {
	return Action{Type: ActionApplyDiscount, Discount: &d}
}

func RemoveDiscount() Action {
	return Action{Type: ActionRemoveDiscount}
}

// Reduce applies a to state and returns the next state. state is never mutated.
//
// AddItem rejects non-positive quantities; UpdateQuantity treats them as removal.
func Reduce(state Cart, a Action) (Cart, error) {
	next := state
	next.Items = append([]Item(nil), state.Items...)

	switch a.Type {
	case ActionAddItem:
		if a.Item.Quantity < 1 {
			return state, ErrInvalidQuantity
		}
		if a.Item.ProductID == "" || a.Item.UnitPrice.Sign() < 0 {
			return state, ErrInvalidItem
		}
		if i := next.Find(a.Item.Key()); i >= 0 {
			next.Items[i].Quantity += a.Item.Quantity
			next.Items[i].UnitPrice = a.Item.UnitPrice
			next.Items[i].Product = a.Item.Product
		} else {
			next.Items = append(next.Items, a.Item)
		}

	case ActionUpdateQuantity:
		i := next.Find(a.Key)
		if i < 0 {
			return next, nil
		}
		if a.Quantity <= 0 {
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
		} else {
			next.Items[i].Quantity = a.Quantity
		}

	case ActionRemoveItem:
		if i := next.Find(a.Key); i >= 0 {
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
		}

	case ActionClear:
		next.Items = []Item{}
		next.Discount = nil

	case ActionSettle:
		for _, p := range a.Items {
			i := next.Find(p.Key())
			if i < 0 {
				continue
			}
			if left := next.Items[i].Quantity - p.Quantity; left > 0 {
				next.Items[i].Quantity = left
			} else {
				next.Items = append(next.Items[:i], next.Items[i+1:]...)
			}
		}
		next.Discount = nil

	case ActionApplyDiscount:
		if a.Discount == nil {
			return state, fmt.Errorf("%w: missing discount", ErrUnknownAction)
		}
		d := *a.Discount
		next.Discount = &d

	case ActionRemoveDiscount:
		next.Discount = nil

	default:
		return state, fmt.Errorf("%w: %s", ErrUnknownAction, a.Type)
	}

	return next, nil
}
