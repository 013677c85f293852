package db

// Partial-update scripts submitted with bulk update operations. The memory
// driver recognizes them by source and applies the same semantics natively,
// so both drivers stay behaviorally identical.

// ScriptSourceNodeMerge re-indexes a fulltext root's own data while keeping
// the aggregate fields other contributors have built up on it.
const ScriptSourceNodeMerge = `def ft = ctx._source.containsKey('__fulltext') ? ctx._source['__fulltext'] : new LinkedHashMap();
def parts = ctx._source.containsKey('__fulltextParts') ? ctx._source['__fulltextParts'] : new LinkedHashMap();
ctx._source = params.document;
ctx._source['__fulltext'] = ft;
ctx._source['__fulltextParts'] = parts;`

// ScriptSourceFulltextMerge sets or removes one contributor's fragment on a
// fulltext root and rebuilds the aggregate from the part map in insertion
// order, trimming each contribution and joining with single spaces.
const ScriptSourceFulltextMerge = `if (!(ctx._source.containsKey('__fulltextParts') && ctx._source['__fulltextParts'] instanceof Map)) {
  ctx._source['__fulltextParts'] = new LinkedHashMap();
}
if (params.remove == true) {
  ctx._source['__fulltextParts'].remove(params.contributor);
} else {
  ctx._source['__fulltextParts'][params.contributor] = params.fragment;
}
def fulltext = new LinkedHashMap();
for (part in ctx._source['__fulltextParts'].values()) {
  for (entry in part.entrySet()) {
    String text = entry.getValue() == null ? '' : entry.getValue().toString().trim();
    if (text.length() == 0) {
      continue;
    }
    if (fulltext.containsKey(entry.getKey())) {
      fulltext[entry.getKey()] = fulltext[entry.getKey()] + ' ' + text;
    } else {
      fulltext[entry.getKey()] = text;
    }
  }
}
ctx._source['__fulltext'] = fulltext;`
