package dynamic

import (
	"encoding/json"
	"fmt"

	"github.com/law-makers/dommap/pkg/models"
)

// annotateScript runs in the page. It captures the pristine markup, then,
// when any annotation is requested, walks the element tree from <html>
// (skipping <head>) and returns the augmented markup as well.
const annotateScript = `function (opts) {
  var root = document.documentElement;
  var plain = root.outerHTML;

  if (!(opts.generateIds || opts.computedStyle || opts.elementsPosition)) {
    return { plain: plain, processed: plain };
  }

  var nextId = 0;

  function serialize(style) {
    if (!style) {
      return "";
    }
    if (style.cssText) {
      return style.cssText;
    }
    var out = [];
    for (var i = 0; i < style.length; i++) {
      var name = style[i];
      out.push(name + ": " + style.getPropertyValue(name) + ";");
    }
    return out.join(" ");
  }

  function visit(el) {
    if (el.tagName === "HEAD") {
      return;
    }
    if (opts.generateIds && !el.getAttribute("id")) {
      nextId++;
      el.setAttribute("id", "qw-generated-id-" + nextId);
    }
    if (el.tagName === "VIDEO") {
      el.setAttribute("video-duration", String(el.duration));
    }
    if (opts.computedStyle) {
      el.setAttribute("computed-style", serialize(window.getComputedStyle(el)));
      el.setAttribute("computed-style-before", serialize(window.getComputedStyle(el, "::before")));
      el.setAttribute("computed-style-after", serialize(window.getComputedStyle(el, "::after")));
    }
    if (opts.elementsPosition) {
      var rect = el.getBoundingClientRect();
      el.setAttribute("w-scrollx", String(window.scrollX));
      el.setAttribute("w-scrolly", String(window.scrollY));
      el.setAttribute("b-right", String(rect.right));
      el.setAttribute("b-bottom", String(rect.bottom));
    }
    for (var child = el.firstElementChild; child; child = child.nextElementSibling) {
      visit(child);
    }
  }

  visit(root);

  root.setAttribute("window-inner-width", String(window.innerWidth));
  root.setAttribute("window-inner-height", String(window.innerHeight));
  root.setAttribute("document-client-width", String(root.clientWidth));
  root.setAttribute("document-client-height", String(root.clientHeight));

  return { plain: plain, processed: root.outerHTML };
}`

type annotateOptions struct {
	GenerateIDs      bool `json:"generateIds"`
	ComputedStyle    bool `json:"computedStyle"`
	ElementsPosition bool `json:"elementsPosition"`
}

type annotateResult struct {
	Plain     string `json:"plain"`
	Processed string `json:"processed"`
}

// annotateExpression returns the script applied to opts as one expression.
func annotateExpression(opts *models.DomOptions) (string, error) {
	var ao annotateOptions
	if opts != nil {
		ao = annotateOptions{
			GenerateIDs:      opts.GenerateIds,
			ComputedStyle:    opts.ComputedStyle,
			ElementsPosition: opts.ElementsPosition,
		}
	}
	raw, err := json.Marshal(ao)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)(%s)", annotateScript, raw), nil
}
