package engine

import (
	"github.com/jmylchreest/quickpanel/internal/animation"
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// bannerPresenter shows heads-up banners through the banner container.
type bannerPresenter struct {
	engine *Engine
	item   *animation.Item
}

func (p *bannerPresenter) Show(rec *model.Record) error {
	e := p.engine
	view, err := e.renderer.CreateView(rec)
	if err != nil {
		return err
	}

	p.item = &animation.Item{
		ID:      rec.ID,
		Type:    animation.ItemBanner,
		View:    view,
		MinSize: e.opts.ItemSize,
	}
	e.start(animation.OpInsert, ContainerBanner, p.item, animation.Ordered(), nil)
	e.playSound(rec)
	return nil
}

func (p *bannerPresenter) Update(rec *model.Record) error {
	if p.item == nil || p.item.View == render.NoView {
		return nil
	}
	return p.engine.renderer.UpdateView(p.item.View, rec)
}

func (p *bannerPresenter) Hide(done func()) {
	item := p.item
	p.item = nil
	if item == nil {
		done()
		return
	}
	p.engine.start(animation.OpDelete, ContainerBanner, item, animation.Position{}, func(animation.Result) {
		done()
	})
}
