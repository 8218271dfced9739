package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tabify/internal/client/api"
	"tabify/internal/client/cart"
	"tabify/internal/client/checkout"
	"tabify/internal/client/recovery"
	"tabify/internal/client/syncchan"
	"tabify/internal/client/tracker"
	"tabify/internal/config"
	"tabify/internal/domain"
	menurepo "tabify/internal/repository/menu"
)

type app struct {
	ctx       context.Context
	out       io.Writer
	log       *zap.Logger
	cfg       config.ClientConfig
	api       *api.Client
	channel   *syncchan.Channel
	cart      *cart.Store
	active    *recovery.File
	submitter *checkout.Submitter

	menu []domain.MenuItem

	mu      sync.Mutex
	tracker *tracker.Tracker
}

func (a *app) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) prompt() { a.printf("> ") }

func (a *app) help() {
	a.printf(`commands:
  menu                 show the menu
  add <id> [qty]       add an item to the cart
  remove <id>          remove an item
  qty <id> <n>         set the quantity of an item (0 removes it)
  cart                 show the cart
  submit [name]        place the order
  status               show the active order
  paynow | paylater    choose how to pay once the shop accepted the order
  quit
`)
}

func (a *app) loadMenu() {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	items, err := a.api.Menu(ctx)
	if err != nil {
		a.log.Warn("menu unavailable, using built-in catalog", zap.Error(err))
		items = menurepo.DefaultItems()
	}
	a.menu = items
}

// resume picks up the order stored by a previous session.
func (a *app) resume() {
	id, err := a.active.Load()
	if err != nil {
		a.log.Warn("load active order", zap.Error(err))
		return
	}
	if id != "" {
		a.printf("resuming order %s\n", id)
		a.track(id)
	}
}

func (a *app) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "menu":
		a.showMenu()
	case "add":
		a.add(args)
	case "remove", "rm":
		id, ok := a.intArg(args, 0)
		if ok {
			a.cart.Remove(id)
			a.showCart()
		}
	case "qty":
		id, ok := a.intArg(args, 0)
		q, ok2 := a.intArg(args, 1)
		if ok && ok2 {
			a.cart.UpdateQuantity(id, q)
			a.showCart()
		}
	case "cart":
		a.showCart()
	case "submit":
		a.submit(strings.Join(args, " "))
	case "status":
		a.showStatus()
	case "paynow":
		a.pay(true)
	case "paylater":
		a.pay(false)
	case "help", "?":
		a.help()
	case "quit", "exit", "q":
		return false
	default:
		a.printf("unknown command %q, type help\n", cmd)
	}
	return true
}

func (a *app) intArg(args []string, i int) (int, bool) {
	if i >= len(args) {
		a.printf("missing argument\n")
		return 0, false
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		a.printf("%q is not a number\n", args[i])
		return 0, false
	}
	return n, true
}

func (a *app) showMenu() {
	for _, it := range a.menu {
		a.printf("%3d  %-14s ₹%d\n", it.ID, it.Name, it.Price)
	}
}

func (a *app) add(args []string) {
	id, ok := a.intArg(args, 0)
	if !ok {
		return
	}
	qty := 1
	if len(args) > 1 {
		if qty, ok = a.intArg(args, 1); !ok {
			return
		}
	}
	for _, it := range a.menu {
		if it.ID == id {
			a.cart.Add(domain.CartItem{ID: it.ID, Name: it.Name, UnitPrice: it.Price, Quantity: qty})
			a.showCart()
			return
		}
	}
	a.printf("no menu item %d\n", id)
}

func (a *app) showCart() {
	items := a.cart.Items()
	if len(items) == 0 {
		a.printf("cart is empty\n")
		return
	}
	for _, it := range items {
		a.printf("%3d  %-14s %2d x ₹%d = ₹%d\n", it.ID, it.Name, it.Quantity, it.UnitPrice, it.LineTotal())
	}
	a.printf("     %d items, total ₹%d\n", a.cart.TotalItems(), a.cart.TotalPrice())
}

func (a *app) submit(name string) {
	if name == "" {
		name = a.cfg.CustomerName
	}
	o, err := a.submitter.Submit(a.ctx, name)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		a.printf("your cart is empty, add something first\n")
		return
	case errors.Is(err, checkout.ErrDisconnected):
		a.printf("not connected to the shop, your cart is kept; try again in a moment\n")
		return
	case err != nil:
		a.printf("could not place order: %v\n", err)
		return
	}
	a.printf("order %s placed, total ₹%d\n", o.ID, o.Total)
	if !sleepCtx(a.ctx, checkout.AckDelay) {
		return
	}
	a.track(o.ID)
}

// sleepCtx waits for d and reports false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *app) track(orderID string) {
	a.stopTracking()
	t := tracker.New(orderID, a.api, a.channel, a.log)
	t.OnChange(a.onChange)
	a.mu.Lock()
	a.tracker = t
	a.mu.Unlock()
	t.Mount(a.ctx)
	a.printf("tracking order %s\n", orderID)
}

func (a *app) stopTracking() {
	a.mu.Lock()
	t := a.tracker
	a.tracker = nil
	a.mu.Unlock()
	if t != nil {
		t.Unmount()
	}
}

func (a *app) current() *tracker.Tracker {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker
}

func (a *app) onChange(s tracker.Snapshot) {
	a.printf("\norder %s: %s\n", s.OrderID, describe(s))
	if s.Status == domain.StatusPaid && s.PaymentStatus == domain.PaymentPaid && s.Source != tracker.SourceOptimistic {
		if err := a.active.Clear(); err != nil {
			a.log.Warn("clear active order", zap.Error(err))
		}
	}
}

func describe(s tracker.Snapshot) string {
	switch {
	case s.Status == domain.StatusPaid:
		return "paid, thank you"
	case s.PaymentStatus == domain.PaymentPaid:
		return "payment sent, waiting for the shop"
	case s.Status == domain.StatusAccepted:
		return "accepted, choose paynow or paylater"
	default:
		return "waiting for the shop to accept"
	}
}

func (a *app) showStatus() {
	t := a.current()
	if t == nil {
		a.printf("no active order\n")
		return
	}
	s := t.Current()
	a.printf("order %s: %s (connected: %t)\n", s.OrderID, describe(s), a.channel.Connected())
}

func (a *app) pay(now bool) {
	t := a.current()
	if t == nil {
		a.printf("no active order\n")
		return
	}
	var err error
	if now {
		err = t.PayNow(a.ctx)
	} else {
		err = t.PayLater(a.ctx)
	}
	switch {
	case errors.Is(err, tracker.ErrPaymentUnavailable):
		a.printf("payment is available once the shop accepts the order\n")
	case err != nil:
		a.printf("payment not sent: %v\n", err)
	case !now:
		a.printf("pay at the counter when you collect your order\n")
		a.stopTracking()
	}
}
