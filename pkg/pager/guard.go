package pager

// BasicPageGuard couples a pinned page to the pager it was pinned from,
// guaranteeing the page is unpinned exactly once no matter how the guard's
// owner exits. It holds neither a read nor a write latch; callers upgrade to
// a ReadPageGuard or WritePageGuard to actually touch the page's contents.
//
// Go has no destructors, so "drop on every exit path" is the caller's job:
// acquire a guard, defer (or explicitly call) Drop, and never let the guard
// outlive the scope that acquired it. Drop is idempotent, so a deferred Drop
// after an explicit early Drop (e.g. on the success path of a split) is safe.
type BasicPageGuard struct {
	pager *Pager
	page  *Page
}

// NewPageGuarded returns a BasicPageGuard around a freshly allocated page,
// along with that page's number. If the pager has no pages to give out, the
// returned guard IsEmpty and id is NoPage; callers must check this before
// building on top of it.
func (pager *Pager) NewPageGuarded() (guard *BasicPageGuard, id int64) {
	page, err := pager.GetNewPage()
	if err != nil {
		return &BasicPageGuard{}, NoPage
	}
	return &BasicPageGuard{pager: pager, page: page}, page.GetPageNum()
}

// FetchPageBasic returns a BasicPageGuard around an existing page, taking no
// latch. Most callers want FetchPageRead or FetchPageWrite instead.
func (pager *Pager) FetchPageBasic(pagenum int64) (*BasicPageGuard, error) {
	page, err := pager.GetPage(pagenum)
	if err != nil {
		return nil, err
	}
	return &BasicPageGuard{pager: pager, page: page}, nil
}

// FetchPageRead fetches a page and returns it wrapped in a ReadPageGuard,
// already holding the page's shared latch.
func (pager *Pager) FetchPageRead(pagenum int64) (*ReadPageGuard, error) {
	basic, err := pager.FetchPageBasic(pagenum)
	if err != nil {
		return nil, err
	}
	return basic.UpgradeRead(), nil
}

// FetchPageWrite fetches a page and returns it wrapped in a WritePageGuard,
// already holding the page's exclusive latch.
func (pager *Pager) FetchPageWrite(pagenum int64) (*WritePageGuard, error) {
	basic, err := pager.FetchPageBasic(pagenum)
	if err != nil {
		return nil, err
	}
	return basic.UpgradeWrite(), nil
}

// IsEmpty reports whether this guard holds no page, either because it was
// never successfully acquired or because it has already been Dropped.
func (g *BasicPageGuard) IsEmpty() bool {
	return g == nil || g.page == nil
}

// PageID returns the page number this guard holds, or NoPage if empty.
func (g *BasicPageGuard) PageID() int64 {
	if g.IsEmpty() {
		return NoPage
	}
	return g.page.GetPageNum()
}

// Page exposes the underlying page. Used by the hash package's AsHeaderPage /
// AsDirectoryPage / AsBucketPage view constructors, which read and write the page's
// raw bytes directly rather than through a generic AsMut[T] cast.
func (g *BasicPageGuard) Page() *Page {
	if g.IsEmpty() {
		return nil
	}
	return g.page
}

// Drop unpins the guarded page, if any, and empties the guard. Safe to call
// more than once and safe to call on an empty guard.
func (g *BasicPageGuard) Drop() {
	if g.IsEmpty() {
		return
	}
	_ = g.pager.PutPage(g.page)
	g.pager = nil
	g.page = nil
}

// UpgradeRead consumes this guard and returns a ReadPageGuard holding the
// same page's shared latch. The receiver is left empty.
func (g *BasicPageGuard) UpgradeRead() *ReadPageGuard {
	if g.IsEmpty() {
		return &ReadPageGuard{}
	}
	page := g.page
	pager := g.pager
	g.page = nil
	g.pager = nil
	page.RLock()
	return &ReadPageGuard{pager: pager, page: page}
}

// UpgradeWrite consumes this guard and returns a WritePageGuard holding the
// same page's exclusive latch. The receiver is left empty.
func (g *BasicPageGuard) UpgradeWrite() *WritePageGuard {
	if g.IsEmpty() {
		return &WritePageGuard{}
	}
	page := g.page
	pager := g.pager
	g.page = nil
	g.pager = nil
	page.WLock()
	return &WritePageGuard{pager: pager, page: page}
}

// ReadPageGuard holds a page pinned and read-latched. Drop releases the
// latch before unpinning, mirroring the acquisition order in reverse.
type ReadPageGuard struct {
	pager *Pager
	page  *Page
}

func (g *ReadPageGuard) IsEmpty() bool {
	return g == nil || g.page == nil
}

func (g *ReadPageGuard) PageID() int64 {
	if g.IsEmpty() {
		return NoPage
	}
	return g.page.GetPageNum()
}

// Page exposes the underlying page for read-only access.
func (g *ReadPageGuard) Page() *Page {
	if g.IsEmpty() {
		return nil
	}
	return g.page
}

// Drop releases the read latch and unpins the page. Safe to call more than
// once and safe to call on an empty guard.
func (g *ReadPageGuard) Drop() {
	if g.IsEmpty() {
		return
	}
	g.page.RUnlock()
	_ = g.pager.PutPage(g.page)
	g.pager = nil
	g.page = nil
}

// WritePageGuard holds a page pinned and write-latched. On Drop it always
// marks the page dirty before unlatching and unpinning: a write guard is a
// conservative commitment that the caller might have mutated the page, so
// the pager must not skip flushing it.
type WritePageGuard struct {
	pager *Pager
	page  *Page
}

func (g *WritePageGuard) IsEmpty() bool {
	return g == nil || g.page == nil
}

func (g *WritePageGuard) PageID() int64 {
	if g.IsEmpty() {
		return NoPage
	}
	return g.page.GetPageNum()
}

// Page exposes the underlying page. Any write through it marks the page
// dirty as a side effect of Page.Update; Drop marks it dirty unconditionally
// regardless, per the write-guard contract.
func (g *WritePageGuard) Page() *Page {
	if g.IsEmpty() {
		return nil
	}
	return g.page
}

// Drop marks the page dirty, releases the write latch, and unpins the page.
// Safe to call more than once and safe to call on an empty guard.
func (g *WritePageGuard) Drop() {
	if g.IsEmpty() {
		return
	}
	g.page.SetDirty(true)
	g.page.WUnlock()
	_ = g.pager.PutPage(g.page)
	g.pager = nil
	g.page = nil
}
