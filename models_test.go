package graphstate

import (
	"time"

	"github.com/google/uuid"
)

type Country struct {
	ID   int
	Name string
}

type Order struct {
	ID      int
	Total   float64
	Lines   []OrderLine
	Placed  time.Time
	Product *Product
}

type Customer struct {
	ID      int
	Name    string
	Country *Country
	Orders  []*Order
	Labels  map[string]string
	Ignored *Country `graph:"-"`
}

// Product has a caller-assigned key.
type Product struct {
	Id   int `graph:"key,manual"`
	Name string
}

// OrderLine has a composite key and is stored by value in Order.Lines.
type OrderLine struct {
	OrderID   int `graph:"key"`
	ProductID int `graph:"key"`
	Quantity  int
}

type Region struct {
	Code string
	Name string
}

type Device struct {
	DeviceID uuid.UUID
	Owner    *Customer
}

// Employee references itself so graphs can contain cycles.
type Employee struct {
	ID      int
	Manager *Employee
	Reports []*Employee
}

type Keyless struct {
	Name string
}

func sampleCustomer(id int) *Customer {
	return &Customer{
		ID:      id,
		Name:    "Ana",
		Country: &Country{ID: 1, Name: "NZ"},
		Orders: []*Order{
			{ID: 1, Total: 10},
			{Total: 20},
		},
	}
}
