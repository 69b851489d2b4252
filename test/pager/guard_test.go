package pager_test

import (
	"testing"

	"hashdb/pkg/pager"
)

func TestPageGuards(t *testing.T) {
	t.Run("BasicGuardUnpins", testBasicGuardUnpins)
	t.Run("ReadGuardLatches", testReadGuardLatches)
	t.Run("WriteGuardMarksDirty", testWriteGuardMarksDirty)
	t.Run("DropIsIdempotent", testDropIsIdempotent)
	t.Run("DeletePageReusesPagenum", testDeletePageReusesPagenum)
	t.Run("DeletePinnedPageErrors", testDeletePinnedPageErrors)
}

/*
NewPageGuarded should hand back a guard pinning a freshly allocated page;
dropping it should unpin that page, letting it be fetched again afterward.
*/
func testBasicGuardUnpins(t *testing.T) {
	p := setupPager(t)
	guard, id := p.NewPageGuarded()
	if guard.IsEmpty() {
		t.Fatal("expected a non-empty guard for a freshly allocated page")
	}
	if guard.PageID() != id {
		t.Fatalf("guard.PageID() = %d, want %d", guard.PageID(), id)
	}
	guard.Drop()
	if !guard.IsEmpty() {
		t.Error("guard should be empty after Drop")
	}

	// The page should now be fetchable again without blocking on a stale pin.
	page, err := p.GetPage(id)
	if err != nil {
		t.Fatal("failed to re-fetch page after guard Drop:", err)
	}
	_ = p.PutPage(page)
}

/*
A ReadPageGuard should hold the page's read latch until Dropped.
*/
func testReadGuardLatches(t *testing.T) {
	p := setupPager(t)
	guard, id := p.NewPageGuarded()
	guard.Drop()

	rg, err := p.FetchPageRead(id)
	if err != nil {
		t.Fatal("FetchPageRead failed:", err)
	}
	if rg.PageID() != id {
		t.Errorf("rg.PageID() = %d, want %d", rg.PageID(), id)
	}
	// A second reader should be able to acquire the shared latch too.
	rg2, err := p.FetchPageRead(id)
	if err != nil {
		t.Fatal("second FetchPageRead failed:", err)
	}
	rg2.Drop()
	rg.Drop()
}

/*
A WritePageGuard should mark its page dirty on Drop even if the caller
never wrote through it - the write-guard contract is that it conservatively
assumes the page may have changed.
*/
func testWriteGuardMarksDirty(t *testing.T) {
	p := setupPager(t)
	guard, id := p.NewPageGuarded()
	wg := guard.UpgradeWrite()
	wg.Page().SetDirty(false)
	wg.Drop()

	page, err := p.GetPage(id)
	if err != nil {
		t.Fatal("GetPage failed:", err)
	}
	defer p.PutPage(page)
	if !page.IsDirty() {
		t.Error("expected WritePageGuard.Drop to mark the page dirty")
	}
}

/*
Drop should be safe to call more than once, and safe to call on an
already-empty guard.
*/
func testDropIsIdempotent(t *testing.T) {
	p := setupPager(t)
	guard, _ := p.NewPageGuarded()
	guard.Drop()
	guard.Drop()

	empty := &pager.BasicPageGuard{}
	empty.Drop()
}

/*
DeletePage should return an unpinned page's number to the free pool, and a
subsequent NewPageGuarded call should reuse it rather than growing the file.
*/
func testDeletePageReusesPagenum(t *testing.T) {
	p := setupPager(t)
	guard, id := p.NewPageGuarded()
	guard.Drop()

	numPagesBefore := p.GetNumPages()
	if err := p.DeletePage(id); err != nil {
		t.Fatal("DeletePage failed:", err)
	}

	newGuard, newID := p.NewPageGuarded()
	defer newGuard.Drop()
	if newID != id {
		t.Errorf("expected a freed pagenum to be reused: got %d, want %d", newID, id)
	}
	if p.GetNumPages() != numPagesBefore {
		t.Errorf("reusing a freed page should not grow the file: numPages = %d, want %d", p.GetNumPages(), numPagesBefore)
	}
}

/*
DeletePage should refuse to delete a page that's still pinned.
*/
func testDeletePinnedPageErrors(t *testing.T) {
	p := setupPager(t)
	guard, id := p.NewPageGuarded()
	defer guard.Drop()

	if err := p.DeletePage(id); err != pager.ErrPageStillPinned {
		t.Errorf("expected ErrPageStillPinned, got %v", err)
	}
}
